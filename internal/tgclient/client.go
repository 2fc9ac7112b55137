// Package tgclient assembles the shared Telegram client: session
// handling, peer and update-state storage, rate limiting, and the
// lookups the higher layers need (entity resolution, input peers,
// dialog sync).
package tgclient

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	pebbledb "github.com/cockroachdb/pebble"
	"github.com/go-faster/errors"
	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/contrib/pebble"
	"github.com/gotd/contrib/storage"
	"go.etcd.io/bbolt"
	"golang.org/x/time/rate"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
)

// Options configures the client.
type Options struct {
	// APIID is the Telegram API ID from https://my.telegram.org
	APIID int

	// APIHash is the Telegram API hash from https://my.telegram.org
	APIHash string

	// StringSession is a Telethon-exported string session. When set,
	// auth data is imported into memory and never written back; when
	// empty, a session file under StateDir is used instead.
	StringSession string

	// BotToken logs the account in as a bot when the session is not yet
	// authorized. User accounts must arrive already authorized.
	BotToken string

	// StateDir holds the peer db, update state, session file and client
	// logs. Defaults to ".state".
	StateDir string

	// Logger is the application logger. Defaults to slog.Default.
	Logger *slog.Logger

	// NoUpdates skips the update gap recovery machinery, for one-shot
	// jobs that never listen for events.
	NoUpdates bool

	// Verbose enables debug logging and tees the client log to stderr.
	Verbose bool

	// DeviceModel is reported to Telegram. Defaults to "telemgr".
	DeviceModel string

	// AppVersion is reported to Telegram. Defaults to "1.0.0".
	AppVersion string
}

func (o *Options) setDefaults() {
	if o.StateDir == "" {
		o.StateDir = ".state"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DeviceModel == "" {
		o.DeviceModel = "telemgr"
	}
	if o.AppVersion == "" {
		o.AppVersion = "1.0.0"
	}
}

func (o *Options) validate() error {
	if o.APIID == 0 {
		return ErrMissingAPIID
	}
	if o.APIHash == "" {
		return ErrMissingAPIHash
	}
	return nil
}

// Client is a connected Telegram account plus the storages hanging off
// it. Construct with New, register handlers via Dispatcher, then Run.
type Client struct {
	opts Options
	log  *slog.Logger

	client     *telegram.Client
	api        *tg.Client
	dispatcher tg.UpdateDispatcher
	gaps       *updates.Manager
	peerDB     *pebble.PeerStorage
	resolver   peer.Resolver

	db     *pebbledb.DB
	boltDB *bbolt.DB

	self    atomic.Pointer[tg.User]
	running atomic.Bool
}

// New builds the client and opens its storages.
func New(opts Options) (*Client, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.StateDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}

	zapLog := newZapLogger(opts.StateDir, opts.Verbose)

	sessionStorage, err := newSessionStorage(opts)
	if err != nil {
		return nil, err
	}

	db, err := pebbledb.Open(filepath.Join(opts.StateDir, "peers.pebble.db"), &pebbledb.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open peer db")
	}
	peerDB := pebble.NewPeerStorage(db)

	c := &Client{
		opts:       opts,
		log:        opts.Logger,
		dispatcher: tg.NewUpdateDispatcher(),
		peerDB:     peerDB,
		db:         db,
	}

	// Every update passes through the peer storage hook first, so
	// access hashes keep flowing in while the client runs.
	handler := telegram.UpdateHandler(storage.UpdateHook(c.dispatcher, peerDB))
	if !opts.NoUpdates {
		boltDB, err := bbolt.Open(filepath.Join(opts.StateDir, "updates.bolt.db"), 0666, nil)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "open update state db")
		}
		c.boltDB = boltDB
		c.gaps = updates.New(updates.Config{
			Handler: handler,
			Logger:  zapLog.Named("gaps"),
			Storage: boltstor.NewStateStorage(boltDB),
		})
		handler = c.gaps
	}

	c.client = telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		Logger:         zapLog,
		SessionStorage: sessionStorage,
		UpdateHandler:  handler,
		Middlewares: []telegram.Middleware{
			floodWaitMiddleware{log: opts.Logger},
			ratelimit.New(rate.Every(100*time.Millisecond), 5),
		},
		Device: telegram.DeviceConfig{
			DeviceModel:    opts.DeviceModel,
			SystemVersion:  "1.0",
			AppVersion:     opts.AppVersion,
			LangCode:       "en",
			SystemLangCode: "en",
		},
	})
	return c, nil
}

// Dispatcher exposes the update dispatcher for handler registration.
// Register before calling Run.
func (c *Client) Dispatcher() tg.UpdateDispatcher {
	return c.dispatcher
}

// API returns the raw API client. Valid once Run has connected.
func (c *Client) API() *tg.Client {
	return c.api
}

// Self returns the authenticated user, nil before Run connects.
func (c *Client) Self() *tg.User {
	return c.self.Load()
}

// SelfID returns the authenticated account id, zero before connection.
func (c *Client) SelfID() int64 {
	if self := c.self.Load(); self != nil {
		return self.ID
	}
	return 0
}

// Run connects, checks authorization and calls ready. With updates
// enabled it then blocks delivering events until ctx is canceled; in
// no-updates mode it returns when ready does.
func (c *Client) Run(ctx context.Context, ready func(ctx context.Context) error) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return errors.Wrap(err, "auth status")
		}
		if !status.Authorized {
			if c.opts.BotToken == "" {
				return ErrNotAuthorized
			}
			if _, err := c.client.Auth().Bot(ctx, c.opts.BotToken); err != nil {
				return errors.Wrap(err, "bot login")
			}
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch self")
		}
		c.self.Store(self)
		c.api = tg.NewClient(c.client)
		c.resolver = storage.NewResolverCache(peer.Plain(c.api), c.peerDB)

		c.log.Info("logged in", "id", self.ID, "username", self.Username)

		if ready != nil {
			if err := ready(ctx); err != nil {
				return err
			}
		}

		if c.gaps == nil {
			return nil
		}
		return c.gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{
			IsBot: self.Bot,
			OnStart: func(ctx context.Context) {
				c.log.Info("listening for updates")
			},
		})
	})
}

// Close releases the storages. Call after Run has returned.
func (c *Client) Close() error {
	var firstErr error
	if c.boltDB != nil {
		if err := c.boltDB.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

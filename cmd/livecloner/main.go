package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/telemgr/telemgr/internal/cloner"
	"github.com/telemgr/telemgr/internal/config"
	"github.com/telemgr/telemgr/internal/mapping"
	"github.com/telemgr/telemgr/internal/status"
	"github.com/telemgr/telemgr/internal/tgclient"
)

const statusInterval = 30 * time.Second

type args struct {
	session     string
	config      string
	status      string
	mappings    string
	state       string
	maxMappings int
	verbose     bool
	testSession bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("livecloner failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var arg args
	flag.StringVar(&arg.session, "session", "", "Telethon string session")
	flag.StringVar(&arg.config, "config", "config.json", "config file")
	flag.StringVar(&arg.status, "status", "status.json", "status file")
	flag.StringVar(&arg.mappings, "mappings", "message_mappings.json", "message mapping file")
	flag.StringVar(&arg.state, "state", ".state", "client state directory")
	flag.IntVar(&arg.maxMappings, "max-mappings", 0, "mapping keys kept before the oldest are dropped")
	flag.BoolVar(&arg.verbose, "verbose", false, "debug logging to stderr")
	flag.BoolVar(&arg.testSession, "test-session", false, "verify the session, print the account as JSON and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load env")
	}

	log := newLogger(arg.verbose)
	slog.SetDefault(log)

	if arg.testSession {
		return testSession(ctx, arg, log)
	}

	cfgStore, err := config.Open(arg.config, log)
	if err != nil {
		return err
	}
	cfg := cfgStore.Snapshot()

	maps := mapping.Open(arg.mappings, arg.maxMappings, log)
	rep := status.New(arg.status, cfgStore, log)

	client, err := tgclient.New(tgclient.Options{
		APIID:         cfg.APIID,
		APIHash:       cfg.APIHash,
		StringSession: arg.session,
		StateDir:      arg.state,
		Logger:        log,
		Verbose:       arg.verbose,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	bot, err := cloner.New(cloner.Options{
		Config:   cfgStore,
		Mappings: maps,
		Status:   rep,
		Resolver: client,
		Syncer:   client,
		Sender:   tgclient.NewMessenger(client),
		Logger:   log,
	})
	if err != nil {
		return err
	}
	runner := cloner.NewRunner(bot, client)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })
	g.Go(func() error { return rep.Run(ctx, statusInterval) })
	return g.Wait()
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

type accountInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type sessionCheck struct {
	Success  bool         `json:"success"`
	UserInfo *accountInfo `json:"userInfo,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// testSession connects once, prints the session verdict as a single
// JSON line and exits successfully either way; the consumer reads the
// verdict from stdout, not the exit code.
func testSession(ctx context.Context, arg args, log *slog.Logger) error {
	out := checkSession(ctx, arg, log)
	return json.NewEncoder(os.Stdout).Encode(out)
}

func checkSession(ctx context.Context, arg args, log *slog.Logger) sessionCheck {
	fail := func(err error) sessionCheck {
		return sessionCheck{Error: err.Error()}
	}

	cfgStore, err := config.Open(arg.config, log)
	if err != nil {
		return fail(err)
	}
	cfg := cfgStore.Snapshot()

	client, err := tgclient.New(tgclient.Options{
		APIID:         cfg.APIID,
		APIHash:       cfg.APIHash,
		StringSession: arg.session,
		StateDir:      arg.state,
		Logger:        log,
		NoUpdates:     true,
		Verbose:       arg.verbose,
	})
	if err != nil {
		return fail(err)
	}
	defer func() { _ = client.Close() }()

	var info *accountInfo
	err = client.Run(ctx, func(ctx context.Context) error {
		self := client.Self()
		if self == nil {
			return errors.New("no self user")
		}
		info = describeUser(self)
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return sessionCheck{Success: true, UserInfo: info}
}

// describeUser mirrors the fallbacks of the management panel: missing
// names never surface as empty strings except the last name.
func describeUser(u *tg.User) *accountInfo {
	info := &accountInfo{ID: u.ID, Username: "No username", FirstName: "Unknown"}
	if v, ok := u.GetUsername(); ok && v != "" {
		info.Username = v
	}
	if v, ok := u.GetFirstName(); ok && v != "" {
		info.FirstName = v
	}
	if v, ok := u.GetLastName(); ok {
		info.LastName = v
	}
	return info
}

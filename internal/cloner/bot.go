package cloner

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/config"
	"github.com/telemgr/telemgr/internal/entity"
	"github.com/telemgr/telemgr/internal/mapping"
	"github.com/telemgr/telemgr/internal/status"
)

// Sender delivers messages to Telegram. Sent message ids are returned
// so copies can be recorded for reply linkage.
type Sender interface {
	// SendText sends text, as a reply when replyTo is non-zero.
	SendText(ctx context.Context, chat int64, replyTo int, text string) (int, error)

	// SendMedia re-sends prepared media with an optional caption.
	SendMedia(ctx context.Context, chat int64, replyTo int, media tg.InputMediaClass, caption string) (int, error)

	// SendAlbum sends grouped media as one message, with the caption on
	// the first item. Returns the sent ids in item order.
	SendAlbum(ctx context.Context, chat int64, media []tg.InputMediaClass, caption string) ([]int, error)

	// Forward forwards messages natively, keeping their content intact.
	Forward(ctx context.Context, from, to int64, ids []int) error

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, chat int64, msgID int, text string) error
}

// DialogSyncer refreshes the local peer cache from the dialog list and
// reports how many dialogs it saw.
type DialogSyncer interface {
	SyncDialogs(ctx context.Context) (int, error)
}

// Options configures the engine.
type Options struct {
	// Config is the rule and settings store.
	Config *config.Store

	// Mappings records forwarded copies for reply linkage.
	Mappings *mapping.Store

	// Status is the status file reporter.
	Status *status.Reporter

	// Resolver resolves entity references.
	Resolver entity.Resolver

	// Syncer backs the sync command.
	Syncer DialogSyncer

	// Sender delivers outgoing messages.
	Sender Sender

	// SelfID is the authenticated account id.
	SelfID int64

	// Logger is the engine logger. Defaults to slog.Default.
	Logger *slog.Logger

	// SendDelay is the pause after each delivery.
	// Defaults to 500ms.
	SendDelay time.Duration

	// AlbumWindow is how long to wait for further album items before
	// the group is forwarded. Defaults to 500ms.
	AlbumWindow time.Duration
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SendDelay == 0 {
		o.SendDelay = 500 * time.Millisecond
	}
	if o.AlbumWindow == 0 {
		o.AlbumWindow = 500 * time.Millisecond
	}
}

func (o *Options) validate() error {
	switch {
	case o.Config == nil:
		return ErrMissingConfig
	case o.Mappings == nil:
		return ErrMissingMappings
	case o.Status == nil:
		return ErrMissingStatus
	case o.Resolver == nil:
		return ErrMissingResolver
	case o.Syncer == nil:
		return ErrMissingSyncer
	case o.Sender == nil:
		return ErrMissingSender
	}
	return nil
}

// Bot is the cloning engine. It is driven by HandleMessage, one call
// per inbound message, and owns no Telegram connection of its own.
// SetSelfID must run before the first HandleMessage unless Options
// carried the id already.
type Bot struct {
	cfg      *config.Store
	mappings *mapping.Store
	status   *status.Reporter
	resolver entity.Resolver
	syncer   DialogSyncer
	sender   Sender
	log      *slog.Logger
	selfID   int64
	delay    time.Duration

	albums   *albumCollector
	commands []command
}

// New builds the engine.
func New(opts Options) (*Bot, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:      opts.Config,
		mappings: opts.Mappings,
		status:   opts.Status,
		resolver: opts.Resolver,
		syncer:   opts.Syncer,
		sender:   opts.Sender,
		log:      opts.Logger,
		selfID:   opts.SelfID,
		delay:    opts.SendDelay,
	}
	b.albums = newAlbumCollector(opts.AlbumWindow, b.forwardAlbum)
	b.commands = b.commandTable()
	return b, nil
}

// SetSelfID records the authenticated account id once the session is
// known. Call before update handling starts.
func (b *Bot) SetSelfID(id int64) { b.selfID = id }

// HandleMessage runs one inbound message through the gate, the
// forwarding fan-out, and the command table. A message in a linked
// chat can both be forwarded and act as a command; forwarding runs
// first.
func (b *Bot) HandleMessage(ctx context.Context, ev Event) {
	cfg := b.cfg.Snapshot()
	if !b.pass(cfg, ev) {
		return
	}

	if b.albums.add(ctx, ev) {
		return
	}

	b.forward(ctx, cfg, ev)
	b.handleCommand(ctx, ev)
}

// pass is the event gate. Nothing is processed while the bot is
// disabled, and only the account itself and sudo users get through.
func (b *Bot) pass(cfg config.Config, ev Event) bool {
	if !cfg.BotEnabled {
		return false
	}
	return ev.Outgoing || ev.Sender == b.selfID || slices.Contains(cfg.Sudo, ev.Sender)
}

// Close cancels any album groups still waiting for their window.
func (b *Bot) Close() {
	b.albums.stop()
}

// pause sleeps the inter-send delay, cut short by ctx.
func (b *Bot) pause(ctx context.Context) {
	timer := time.NewTimer(b.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

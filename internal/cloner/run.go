package cloner

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
	"github.com/telemgr/telemgr/internal/tgclient"
)

// Runner binds the engine to a client: update handlers, the startup
// dialog sync and entity pre-resolution, and the status lifecycle.
type Runner struct {
	bot    *Bot
	client *tgclient.Client
}

// NewRunner registers the engine's update handlers on the client's
// dispatcher. Call before the client runs.
func NewRunner(bot *Bot, client *tgclient.Client) *Runner {
	r := &Runner{bot: bot, client: client}

	handle := func(ctx context.Context, msg *tg.Message) {
		// Outgoing messages stay in: the account's own messages drive
		// both forwarding and commands.
		bot.HandleMessage(ctx, EventFromMessage(msg))
	}

	dispatcher := client.Dispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		if msg, ok := u.Message.(*tg.Message); ok {
			handle(ctx, msg)
		}
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		if msg, ok := u.Message.(*tg.Message); ok {
			handle(ctx, msg)
		}
		return nil
	})
	return r
}

// Run connects and processes updates until ctx is canceled. The status
// file tracks the lifecycle throughout.
func (r *Runner) Run(ctx context.Context) error {
	st := r.bot.status
	log := r.bot.log

	if err := st.WriteMessage("Starting live cloning bot..."); err != nil {
		log.Error("status write failed", "error", err)
	}
	defer r.bot.Close()

	err := r.client.Run(ctx, func(ctx context.Context) error {
		r.bot.SetSelfID(r.client.SelfID())
		st.SetSessionValid(true)
		st.SetRunning(true)

		if n, err := r.client.SyncDialogs(ctx); err != nil {
			log.Warn("dialog sync failed, some entities may not be available", "error", err)
		} else {
			log.Info("dialogs synced", "count", n)
		}
		r.preResolve(ctx)

		if err := st.WriteMessage("Live cloning bot is running"); err != nil {
			log.Error("status write failed", "error", err)
		}
		return nil
	})

	st.SetRunning(false)
	st.SetSessionValid(false)
	if err != nil && !errors.Is(err, context.Canceled) {
		if werr := st.WriteError(err.Error()); werr != nil {
			log.Error("status write failed", "error", werr)
		}
		return err
	}
	if werr := st.WriteMessage("Bot stopped"); werr != nil {
		log.Error("status write failed", "error", werr)
	}
	return err
}

// preResolve warms the peer cache for every configured rule entity so
// the first forwarded message does not stumble over an unknown peer.
// Failures are logged per entity and never fatal.
func (r *Runner) preResolve(ctx context.Context) {
	cfg := r.bot.cfg.Snapshot()
	if len(cfg.Entities) == 0 {
		return
	}

	ids := make(map[int64]struct{})
	for _, rule := range cfg.Entities {
		ids[rule.Source] = struct{}{}
		ids[rule.Target] = struct{}{}
	}

	resolved := 0
	for id := range ids {
		info, err := r.bot.resolver.Resolve(ctx, entity.Ref{Kind: entity.Numeric, ID: id})
		if err != nil {
			r.bot.log.Warn("entity not resolvable, forwarding for it may fail", "id", id, "error", err)
			continue
		}
		r.bot.log.Info("resolved entity", "id", id, "title", info.Title)
		resolved++
	}
	r.bot.log.Info("entity pre-resolution complete", "resolved", resolved, "total", len(ids))
}

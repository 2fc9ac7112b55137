package dlbot

import (
	"context"

	"github.com/gotd/td/tg"
	"golang.org/x/sync/errgroup"

	"github.com/telemgr/telemgr/internal/tgclient"
)

// Runner binds the bot to a client: the update handler plus the worker
// pool lifecycle.
type Runner struct {
	bot    *Bot
	client *tgclient.Client
}

// NewRunner registers the bot's update handler on the client's
// dispatcher. Call before the client runs.
func NewRunner(bot *Bot, client *tgclient.Client) *Runner {
	r := &Runner{bot: bot, client: client}

	client.Dispatcher().OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		// The bot's own replies come back as outgoing updates.
		if msg, ok := u.Message.(*tg.Message); ok && !msg.Out {
			bot.HandleMessage(ctx, msg)
		}
		return nil
	})
	return r
}

// Run connects and serves downloads until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.bot.Run(ctx) })
	g.Go(func() error {
		return r.client.Run(ctx, func(ctx context.Context) error {
			if err := registerCommands(ctx, r.client.API(), r.bot.log); err != nil {
				r.bot.log.Warn("command menu registration failed", "error", err)
			}
			r.bot.log.Info("downloader bot online", "id", r.client.SelfID())
			return nil
		})
	})
	return g.Wait()
}

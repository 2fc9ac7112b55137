package cloner

import (
	"context"

	"github.com/telemgr/telemgr/internal/config"
	"github.com/telemgr/telemgr/internal/mapping"
	"github.com/telemgr/telemgr/internal/tgclient"
)

// forward fans one message out to every destination linked to its
// source chat. A failure at one destination never stops the others;
// the processed counter moves exactly once per source message.
func (b *Bot) forward(ctx context.Context, cfg config.Config, ev Event) {
	targets := targetsFor(cfg.Entities, ev.Chat)
	if len(targets) == 0 {
		return
	}

	// Polls cannot be re-sent as new content, only forwarded whole.
	// They leave no mapping entries.
	if ev.IsPoll() {
		for _, target := range targets {
			if err := b.sender.Forward(ctx, ev.Chat, target, []int{ev.MsgID}); err != nil {
				b.log.Error("poll forward failed", "source", ev.Chat, "target", target, "error", err)
			}
		}
		b.status.Inc()
		return
	}

	text := Transform(ev.Text, cfg)

	for _, target := range targets {
		if err := b.sendCopy(ctx, ev, target, text); err != nil {
			b.log.Error("forward failed", "source", ev.Chat, "target", target, "message", ev.MsgID, "error", err)
		}
		b.pause(ctx)
	}

	b.bumpProcessed()
}

func targetsFor(rules []config.Rule, chat int64) []int64 {
	var targets []int64
	for _, r := range rules {
		if r.Source == chat {
			targets = append(targets, r.Target)
		}
	}
	return targets
}

// sendCopy delivers one copy to one destination and records the
// mapping. When the source message is a reply and the replied-to
// message has a copy in this destination, the copy is sent as a reply
// to it.
func (b *Bot) sendCopy(ctx context.Context, ev Event, target int64, text string) error {
	replyTo := 0
	if ev.ReplyTo != 0 {
		if id, ok := b.mappings.ReplyTarget(ev.Chat, ev.ReplyTo, target); ok {
			replyTo = id
		}
	}

	var (
		sentID int
		err    error
	)
	if media, ok := tgclient.InputMedia(ev.Media); ok {
		sentID, err = b.sender.SendMedia(ctx, target, replyTo, media, text)
	} else {
		if text == "" {
			b.log.Debug("nothing sendable, skipping", "source", ev.Chat, "message", ev.MsgID, "target", target)
			return nil
		}
		sentID, err = b.sender.SendText(ctx, target, replyTo, text)
	}
	if err != nil {
		return err
	}

	if err := b.mappings.Record(ev.Chat, ev.MsgID, mapping.Entry{Chat: target, Msg: sentID}); err != nil {
		b.log.Warn("mapping record failed", "source", ev.Chat, "message", ev.MsgID, "error", err)
	}
	return nil
}

// bumpProcessed increments the counter and flushes the status file on
// every tenth message.
func (b *Bot) bumpProcessed() {
	if n := b.status.Inc(); n%10 == 0 {
		if err := b.status.Write(); err != nil {
			b.log.Error("status write failed", "error", err)
		}
	}
}

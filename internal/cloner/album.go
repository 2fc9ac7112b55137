package cloner

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/tgclient"
)

// albumCollector gathers events sharing a grouped id and fires the
// flush callback once no further item has arrived for a full window.
type albumCollector struct {
	mu      sync.Mutex
	albums  map[int64][]Event
	timers  map[int64]*time.Timer
	window  time.Duration
	flushFn func(ctx context.Context, events []Event)
}

func newAlbumCollector(window time.Duration, flushFn func(ctx context.Context, events []Event)) *albumCollector {
	return &albumCollector{
		albums:  make(map[int64][]Event),
		timers:  make(map[int64]*time.Timer),
		window:  window,
		flushFn: flushFn,
	}
}

// Returns true if the event joined an album and should not be processed
// individually.
func (c *albumCollector) add(ctx context.Context, ev Event) bool {
	if ev.GroupedID == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	groupID := ev.GroupedID
	c.albums[groupID] = append(c.albums[groupID], ev)

	if timer, ok := c.timers[groupID]; ok {
		timer.Stop()
	}

	c.timers[groupID] = time.AfterFunc(c.window, func() {
		c.flush(ctx, groupID)
	})

	return true
}

func (c *albumCollector) flush(ctx context.Context, groupID int64) {
	c.mu.Lock()
	events := c.albums[groupID]
	delete(c.albums, groupID)
	delete(c.timers, groupID)
	c.mu.Unlock()

	if len(events) == 0 {
		return
	}

	// Items may arrive out of order.
	slices.SortFunc(events, func(a, b Event) int {
		return cmp.Compare(a.MsgID, b.MsgID)
	})

	c.flushFn(ctx, events)
}

// stop cancels all pending album timers.
func (c *albumCollector) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, timer := range c.timers {
		timer.Stop()
	}
	c.albums = make(map[int64][]Event)
	c.timers = make(map[int64]*time.Timer)
}

// forwardAlbum fans a completed album out as one grouped send per
// destination. The first non-empty item text becomes the caption; each
// source item maps to the sent message in the same position.
func (b *Bot) forwardAlbum(ctx context.Context, events []Event) {
	cfg := b.cfg.Snapshot()
	targets := targetsFor(cfg.Entities, events[0].Chat)
	if len(targets) == 0 {
		return
	}

	var (
		media   []tg.InputMediaClass
		items   []Event
		caption string
	)
	for _, ev := range events {
		m, ok := tgclient.InputMedia(ev.Media)
		if !ok {
			continue
		}
		if caption == "" && ev.Text != "" {
			caption = Transform(ev.Text, cfg)
		}
		media = append(media, m)
		items = append(items, ev)
	}
	if len(media) == 0 {
		return
	}

	for _, target := range targets {
		ids, err := b.sender.SendAlbum(ctx, target, media, caption)
		if err != nil {
			b.log.Error("album forward failed", "source", events[0].Chat, "target", target, "error", err)
			b.pause(ctx)
			continue
		}
		for i, ev := range items {
			if i >= len(ids) {
				break
			}
			if err := b.mappings.Record(ev.Chat, ev.MsgID, mapping.Entry{Chat: target, Msg: ids[i]}); err != nil {
				b.log.Warn("mapping record failed", "source", ev.Chat, "message", ev.MsgID, "error", err)
			}
		}
		b.pause(ctx)
	}

	for range items {
		b.bumpProcessed()
	}
}

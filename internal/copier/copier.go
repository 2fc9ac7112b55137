package copier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
)

// Telegram is the slice of the client surface the copy engine needs.
type Telegram interface {
	// Resolve maps an entity reference to its id.
	Resolve(ctx context.Context, ref entity.Ref) (entity.Info, error)

	// History returns messages of chat with id greater than minID,
	// oldest first, at most limit. An empty result ends the history.
	History(ctx context.Context, chat int64, minID, limit int) ([]*tg.Message, error)

	// Copy re-sends the content of msg into the destination chat.
	Copy(ctx context.Context, to int64, msg *tg.Message) error

	// Notify sends a notice to the account's saved messages.
	Notify(ctx context.Context, text string) error
}

// Options configures the copy engine.
type Options struct {
	// Pairs is the job store.
	Pairs *Store

	// Telegram performs the actual Telegram operations.
	Telegram Telegram

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// SendDelay is the pause after each copied message.
	// Defaults to 100ms.
	SendDelay time.Duration

	// PageSize is the history fetch window. Defaults to 100.
	PageSize int
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SendDelay == 0 {
		o.SendDelay = 100 * time.Millisecond
	}
	if o.PageSize == 0 {
		o.PageSize = 100
	}
}

var (
	// ErrMissingPairs is returned when no pair store is configured.
	ErrMissingPairs = errors.New("copier: missing pair store")

	// ErrMissingTelegram is returned when no Telegram backend is
	// configured.
	ErrMissingTelegram = errors.New("copier: missing telegram backend")
)

// Copier drives the copy jobs.
type Copier struct {
	pairs    *Store
	tg       Telegram
	log      *slog.Logger
	delay    time.Duration
	pageSize int
}

// New builds the engine.
func New(opts Options) (*Copier, error) {
	opts.setDefaults()
	if opts.Pairs == nil {
		return nil, ErrMissingPairs
	}
	if opts.Telegram == nil {
		return nil, ErrMissingTelegram
	}
	return &Copier{
		pairs:    opts.Pairs,
		tg:       opts.Telegram,
		log:      opts.Logger,
		delay:    opts.SendDelay,
		pageSize: opts.PageSize,
	}, nil
}

// Run processes every configured pair in order and reports completion
// to the account's saved messages. A failing pair is logged and the
// remaining pairs still run; only cancellation stops the job early.
func (c *Copier) Run(ctx context.Context) error {
	pairs := c.pairs.Snapshot()
	if len(pairs) == 0 {
		c.log.Warn("no forward pairs configured")
		return nil
	}

	total := 0
	hadErrors := false
	for _, pair := range pairs {
		n, err := c.runPair(ctx, pair)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("pair failed", "pair", pair.Name, "error", err)
			hadErrors = true
		}
	}

	if err := c.tg.Notify(ctx, completionNote(total, hadErrors)); err != nil {
		c.log.Error("completion notification failed", "error", err)
	}
	if hadErrors {
		return errors.New("copier: completed with errors")
	}
	return nil
}

func (c *Copier) runPair(ctx context.Context, pair Pair) (int, error) {
	c.log.Info("processing forward pair", "pair", pair.Name, "from", pair.From, "to", pair.To, "offset", pair.Offset)

	from, err := c.tg.Resolve(ctx, entity.Parse(pair.From))
	if err != nil {
		return 0, errors.Wrapf(err, "resolve source %q", pair.From)
	}
	to, err := c.tg.Resolve(ctx, entity.Parse(pair.To))
	if err != nil {
		return 0, errors.Wrapf(err, "resolve destination %q", pair.To)
	}

	copied := 0
	offset := pair.Offset
	for {
		page, err := c.tg.History(ctx, from.ID, offset, c.pageSize)
		if err != nil {
			return copied, errors.Wrap(err, "fetch history")
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			if err := c.tg.Copy(ctx, to.ID, msg); err != nil {
				return copied, errors.Wrapf(err, "copy message %d", msg.ID)
			}
			offset = msg.ID
			copied++
			if err := c.pairs.SetOffset(pair.Name, msg.ID); err != nil {
				return copied, err
			}
			c.log.Info("copied message", "pair", pair.Name, "id", msg.ID)

			if err := c.pause(ctx); err != nil {
				return copied, err
			}
		}
	}

	c.log.Info("pair complete", "pair", pair.Name, "copied", copied)
	return copied, nil
}

func (c *Copier) pause(ctx context.Context) error {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func completionNote(total int, hadErrors bool) string {
	msg := fmt.Sprintf("Forward job completed. Total messages processed: %d", total)
	if hadErrors {
		msg = fmt.Sprintf("Forward job completed with errors. Messages processed: %d. Check logs for details.", total)
	}
	return fmt.Sprintf("Hi!\n\n**%s**\n\n**Telegram Manager Python Copier** - Chat forwarding completed.\n\n__Sent via__ `Telegram Manager Python Copier`", msg)
}

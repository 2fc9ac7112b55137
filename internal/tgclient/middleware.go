package tgclient

import (
	"context"
	"log/slog"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// floodWaitMiddleware sleeps and retries when Telegram returns a
// FLOOD_WAIT error. This is the single retry point for rate limits;
// callers see either success or a non-flood error.
type floodWaitMiddleware struct {
	log *slog.Logger
}

func (f floodWaitMiddleware) Handle(next tg.Invoker) telegram.InvokeFunc {
	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		for {
			err := next.Invoke(ctx, input, output)
			if err == nil {
				return nil
			}

			waited, waitErr := tgerr.FloodWait(ctx, err)
			if !waited {
				return waitErr
			}
			f.log.Warn("flood wait, retrying", "error", err)
		}
	}
}

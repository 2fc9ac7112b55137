package copier

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
	"github.com/telemgr/telemgr/internal/tgclient"
)

// clientTelegram adapts tgclient.Client to the engine interface.
type clientTelegram struct {
	client *tgclient.Client
	log    *slog.Logger
}

// NewTelegram wraps a connected client for the copy engine.
func NewTelegram(client *tgclient.Client, log *slog.Logger) Telegram {
	if log == nil {
		log = slog.Default()
	}
	return &clientTelegram{client: client, log: log}
}

func (c *clientTelegram) Resolve(ctx context.Context, ref entity.Ref) (entity.Info, error) {
	return c.client.Resolve(ctx, ref)
}

// History fetches up to limit messages directly after minID, oldest
// first. Windows holding only service messages are skipped over, so
// an empty result always means the history is exhausted.
func (c *clientTelegram) History(ctx context.Context, chat int64, minID, limit int) ([]*tg.Message, error) {
	peer, err := c.client.InputPeer(ctx, chat)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := c.client.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:      peer,
			OffsetID:  minID,
			AddOffset: -limit,
			Limit:     limit,
		})
		if err != nil {
			return nil, errors.Wrap(err, "get history")
		}

		var raw []tg.MessageClass
		switch h := resp.(type) {
		case *tg.MessagesMessages:
			raw = h.Messages
		case *tg.MessagesMessagesSlice:
			raw = h.Messages
		case *tg.MessagesChannelMessages:
			raw = h.Messages
		default:
			return nil, errors.Errorf("unexpected history type %T", resp)
		}
		if len(raw) == 0 {
			return nil, nil
		}

		maxID := minID
		page := make([]*tg.Message, 0, len(raw))
		for _, m := range raw {
			if id := m.GetID(); id > maxID {
				maxID = id
			}
			msg, ok := m.(*tg.Message)
			if !ok || msg.ID <= minID {
				continue
			}
			page = append(page, msg)
		}
		if maxID <= minID {
			// The server clamped the window back onto already
			// processed messages; nothing newer exists.
			return nil, nil
		}
		if len(page) > 0 {
			slices.SortFunc(page, func(a, b *tg.Message) int {
				return cmp.Compare(a.ID, b.ID)
			})
			return page, nil
		}
		minID = maxID
	}
}

// Copy re-sends the message content into the destination chat. Photo
// and document media are reattached; a plain webpage preview is kept
// on its text. Messages with nothing sendable are skipped.
func (c *clientTelegram) Copy(ctx context.Context, to int64, msg *tg.Message) error {
	peer, err := c.client.InputPeer(ctx, to)
	if err != nil {
		return err
	}

	media, hasMedia := msg.GetMedia()
	if hasMedia {
		if input, ok := tgclient.InputMedia(media); ok {
			req := &tg.MessagesSendMediaRequest{
				Peer:     peer,
				Media:    input,
				Message:  msg.Message,
				RandomID: rand.Int64(),
			}
			if len(msg.Entities) > 0 {
				req.SetEntities(msg.Entities)
			}
			if _, err := c.client.API().MessagesSendMedia(ctx, req); err != nil {
				return errors.Wrap(err, "send media")
			}
			return nil
		}
	}

	if msg.Message == "" {
		c.log.Debug("skipping message without sendable content", "id", msg.ID)
		return nil
	}

	_, webPage := media.(*tg.MessageMediaWebPage)
	req := &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   msg.Message,
		RandomID:  rand.Int64(),
		NoWebpage: !webPage,
	}
	if len(msg.Entities) > 0 {
		req.SetEntities(msg.Entities)
	}
	if _, err := c.client.API().MessagesSendMessage(ctx, req); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

func (c *clientTelegram) Notify(ctx context.Context, text string) error {
	_, err := c.client.API().MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:      &tg.InputPeerSelf{},
		Message:   text,
		RandomID:  rand.Int64(),
		NoWebpage: true,
	})
	if err != nil {
		return errors.Wrap(err, "send notification")
	}
	return nil
}

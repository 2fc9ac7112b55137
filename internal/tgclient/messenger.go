package tgclient

import (
	"context"
	"math/rand/v2"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
)

// Messenger sends, forwards and edits messages through the client,
// looking destination peers up in the peer storage.
type Messenger struct {
	client *Client
}

// NewMessenger returns a Messenger backed by the connected client.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

// SendText sends text, as a reply when replyTo is non-zero. Returns the
// sent message id.
func (m *Messenger) SendText(ctx context.Context, chat int64, replyTo int, text string) (int, error) {
	peer, err := m.client.InputPeer(ctx, chat)
	if err != nil {
		return 0, err
	}

	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: rand.Int64(),
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}

	updates, err := m.client.API().MessagesSendMessage(ctx, req)
	if err != nil {
		return 0, errors.Wrap(err, "send message")
	}
	return firstSentID(updates), nil
}

// SendMedia re-sends prepared media with an optional caption. Returns
// the sent message id.
func (m *Messenger) SendMedia(ctx context.Context, chat int64, replyTo int, media tg.InputMediaClass, caption string) (int, error) {
	peer, err := m.client.InputPeer(ctx, chat)
	if err != nil {
		return 0, err
	}

	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  caption,
		RandomID: rand.Int64(),
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}

	updates, err := m.client.API().MessagesSendMedia(ctx, req)
	if err != nil {
		return 0, errors.Wrap(err, "send media")
	}
	return firstSentID(updates), nil
}

// SendAlbum sends grouped media as one message, with the caption on the
// first item. Returns the sent ids in item order.
func (m *Messenger) SendAlbum(ctx context.Context, chat int64, media []tg.InputMediaClass, caption string) ([]int, error) {
	peer, err := m.client.InputPeer(ctx, chat)
	if err != nil {
		return nil, err
	}

	items := make([]tg.InputSingleMedia, len(media))
	for i, part := range media {
		items[i] = tg.InputSingleMedia{
			Media:    part,
			RandomID: rand.Int64(),
		}
	}
	if len(items) > 0 {
		items[0].Message = caption
	}

	updates, err := m.client.API().MessagesSendMultiMedia(ctx, &tg.MessagesSendMultiMediaRequest{
		Peer:       peer,
		MultiMedia: items,
	})
	if err != nil {
		return nil, errors.Wrap(err, "send album")
	}
	return sentMessageIDs(updates), nil
}

// Forward forwards messages natively, keeping their content intact.
func (m *Messenger) Forward(ctx context.Context, from, to int64, ids []int) error {
	fromPeer, err := m.client.InputPeer(ctx, from)
	if err != nil {
		return err
	}
	toPeer, err := m.client.InputPeer(ctx, to)
	if err != nil {
		return err
	}

	randomIDs := make([]int64, len(ids))
	for i := range randomIDs {
		randomIDs[i] = rand.Int64()
	}

	if _, err := m.client.API().MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: fromPeer,
		ToPeer:   toPeer,
		ID:       ids,
		RandomID: randomIDs,
	}); err != nil {
		return errors.Wrap(err, "forward messages")
	}
	return nil
}

// Edit replaces the text of a previously sent message.
func (m *Messenger) Edit(ctx context.Context, chat int64, msgID int, text string) error {
	peer, err := m.client.InputPeer(ctx, chat)
	if err != nil {
		return err
	}

	req := &tg.MessagesEditMessageRequest{
		Peer: peer,
		ID:   msgID,
	}
	req.SetMessage(text)

	if _, err := m.client.API().MessagesEditMessage(ctx, req); err != nil {
		return errors.Wrap(err, "edit message")
	}
	return nil
}

// sentMessageIDs pulls the ids of freshly sent messages out of the
// update response. The server may report the same message twice, once
// as an id allocation and once as the new message, so ids are deduped
// keeping first-seen order.
func sentMessageIDs(updates tg.UpdatesClass) []int {
	var (
		ids  []int
		seen = make(map[int]bool)
	)
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	walk := func(list []tg.UpdateClass) {
		for _, u := range list {
			switch v := u.(type) {
			case *tg.UpdateMessageID:
				add(v.ID)
			case *tg.UpdateNewMessage:
				if msg, ok := v.Message.(*tg.Message); ok {
					add(msg.ID)
				}
			case *tg.UpdateNewChannelMessage:
				if msg, ok := v.Message.(*tg.Message); ok {
					add(msg.ID)
				}
			}
		}
	}

	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		add(u.ID)
	case *tg.Updates:
		walk(u.Updates)
	case *tg.UpdatesCombined:
		walk(u.Updates)
	}
	return ids
}

func firstSentID(updates tg.UpdatesClass) int {
	if ids := sentMessageIDs(updates); len(ids) > 0 {
		return ids[0]
	}
	return 0
}

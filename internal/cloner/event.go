// Package cloner implements the live message cloning engine: a gate on
// the inbound event stream, per-source routing rules, text
// transformation, fan-out delivery with reply linkage, and the chat
// command surface that controls it all.
package cloner

import (
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
)

// Event is one inbound message, flattened to what the engine needs.
type Event struct {
	// Chat is the signed id of the chat the message arrived in.
	Chat int64

	// Sender is the user id of the author, zero when unknown.
	Sender int64

	// MsgID is the message id within the chat.
	MsgID int

	// Outgoing marks messages sent by the account itself.
	Outgoing bool

	// Text is the message body.
	Text string

	// Media is the attached media, nil for plain text.
	Media tg.MessageMediaClass

	// GroupedID ties album items together, zero otherwise.
	GroupedID int64

	// ReplyTo is the replied-to message id in the same chat, zero when
	// the message is not a reply.
	ReplyTo int
}

// IsPoll reports whether the message carries a poll.
func (e Event) IsPoll() bool {
	_, ok := e.Media.(*tg.MessageMediaPoll)
	return ok
}

// EventFromMessage flattens a raw message. The sender falls back to the
// peer for private chats, where FromID is unset.
func EventFromMessage(msg *tg.Message) Event {
	ev := Event{
		Chat:      entity.MarkedID(msg.PeerID),
		MsgID:     msg.ID,
		Outgoing:  msg.Out,
		Text:      msg.Message,
		Media:     msg.Media,
		GroupedID: msg.GroupedID,
	}

	if from, ok := msg.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok {
			ev.Sender = u.UserID
		}
	} else if u, ok := msg.PeerID.(*tg.PeerUser); ok {
		ev.Sender = u.UserID
	}

	if reply, ok := msg.GetReplyTo(); ok {
		if header, ok := reply.(*tg.MessageReplyHeader); ok {
			if id, ok := header.GetReplyToMsgID(); ok {
				ev.ReplyTo = id
			}
		}
	}

	return ev
}

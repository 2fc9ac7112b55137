package tgclient

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
)

// SyncDialogs walks the dialog list and stores every peer it carries,
// so numeric references resolve without further round trips. Returns
// the dialog count.
func (c *Client) SyncDialogs(ctx context.Context) (int, error) {
	if c.api == nil {
		return 0, ErrNotConnected
	}

	iter := query.GetDialogs(c.api).Iter()
	total, err := iter.FetchTotal(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetch dialog count")
	}
	if err := storage.CollectPeers(c.peerDB).Dialogs(ctx, iter); err != nil {
		return 0, errors.Wrap(err, "collect dialogs")
	}
	return total, nil
}

// DialogInfo describes one accessible dialog.
type DialogInfo struct {
	// Kind is User, Group or Channel. Megagroups count as groups.
	Kind string

	// ID is the signed chat id.
	ID int64

	// Title is the display name.
	Title string

	// Username is the public handle, empty for private chats.
	Username string
}

// Dialogs lists every accessible dialog, most recent first.
func (c *Client) Dialogs(ctx context.Context) ([]DialogInfo, error) {
	if c.api == nil {
		return nil, ErrNotConnected
	}

	var (
		out  []DialogInfo
		seen = make(map[int64]bool)
	)
	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	}
	for {
		resp, err := c.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, "get dialogs")
		}

		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
			users    []tg.UserClass
			chats    []tg.ChatClass
		)
		switch d := resp.(type) {
		case *tg.MessagesDialogs:
			dialogs, messages, users, chats = d.Dialogs, d.Messages, d.Users, d.Chats
		case *tg.MessagesDialogsSlice:
			dialogs, messages, users, chats = d.Dialogs, d.Messages, d.Users, d.Chats
		default:
			return out, nil
		}
		if len(dialogs) == 0 {
			return out, nil
		}

		userByID := make(map[int64]*tg.User)
		for _, u := range users {
			if user, ok := u.(*tg.User); ok {
				userByID[user.ID] = user
			}
		}
		chatByID := make(map[int64]tg.ChatClass)
		for _, ch := range chats {
			switch chat := ch.(type) {
			case *tg.Chat:
				chatByID[chat.ID] = chat
			case *tg.Channel:
				chatByID[chat.ID] = chat
			}
		}

		for _, d := range dialogs {
			dlg, ok := d.(*tg.Dialog)
			if !ok {
				continue
			}
			info, ok := dialogInfo(dlg.Peer, userByID, chatByID)
			if !ok || seen[info.ID] {
				continue
			}
			seen[info.ID] = true
			out = append(out, info)
		}

		if len(dialogs) < req.Limit {
			return out, nil
		}
		// Paged by the date of the oldest message in the batch.
		for _, m := range messages {
			switch msg := m.(type) {
			case *tg.Message:
				req.OffsetDate = msg.Date
			case *tg.MessageService:
				req.OffsetDate = msg.Date
			}
		}
	}
}

func dialogInfo(p tg.PeerClass, users map[int64]*tg.User, chats map[int64]tg.ChatClass) (DialogInfo, bool) {
	switch peer := p.(type) {
	case *tg.PeerUser:
		u, ok := users[peer.UserID]
		if !ok {
			return DialogInfo{}, false
		}
		return DialogInfo{
			Kind:     "User",
			ID:       entity.MarkedID(p),
			Title:    strings.TrimSpace(u.FirstName + " " + u.LastName),
			Username: u.Username,
		}, true
	case *tg.PeerChat:
		ch, ok := chats[peer.ChatID].(*tg.Chat)
		if !ok {
			return DialogInfo{}, false
		}
		return DialogInfo{Kind: "Group", ID: entity.MarkedID(p), Title: ch.Title}, true
	case *tg.PeerChannel:
		ch, ok := chats[peer.ChannelID].(*tg.Channel)
		if !ok {
			return DialogInfo{}, false
		}
		kind := "Channel"
		if ch.Megagroup {
			kind = "Group"
		}
		return DialogInfo{Kind: kind, ID: entity.MarkedID(p), Title: ch.Title, Username: ch.Username}, true
	}
	return DialogInfo{}, false
}

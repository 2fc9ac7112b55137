package tgclient

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/storage"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
)

// Resolve maps an entity reference to its id and display title.
// Numeric references are answered from the peer storage; aliases go
// through the username resolver, which caches the result for later
// numeric lookups.
func (c *Client) Resolve(ctx context.Context, ref entity.Ref) (entity.Info, error) {
	switch ref.Kind {
	case entity.Self:
		self := c.Self()
		if self == nil {
			return entity.Info{}, ErrNotConnected
		}
		return entity.Info{ID: self.ID, Title: self.FirstName}, nil

	case entity.Numeric:
		if self := c.Self(); self != nil && ref.ID == self.ID {
			return entity.Info{ID: self.ID, Title: self.FirstName}, nil
		}
		p, err := storage.FindPeer(ctx, c.peerDB, entity.AsPeer(ref.ID))
		if err != nil {
			return entity.Info{}, errors.Wrapf(err, "peer %d not cached, send sync to refresh dialogs", ref.ID)
		}
		return peerInfo(p), nil

	case entity.Alias:
		if c.resolver == nil {
			return entity.Info{}, ErrNotConnected
		}
		input, err := c.resolver.ResolveDomain(ctx, ref.Name)
		if err != nil {
			return entity.Info{}, errors.Wrapf(err, "resolve @%s", ref.Name)
		}
		id, err := markedFromInput(input)
		if err != nil {
			return entity.Info{}, err
		}
		// The resolver cache stored the full peer, so the title lookup
		// normally succeeds right away.
		p, err := storage.FindPeer(ctx, c.peerDB, entity.AsPeer(id))
		if err != nil {
			return entity.Info{ID: id, Title: entity.FallbackTitle(id)}, nil
		}
		return peerInfo(p), nil
	}
	return entity.Info{}, errors.Errorf("unsupported reference %q", ref)
}

// peerInfo flattens a stored peer into id and title.
func peerInfo(p storage.Peer) entity.Info {
	switch {
	case p.User != nil:
		title := strings.TrimSpace(p.User.FirstName + " " + p.User.LastName)
		if title == "" {
			title = entity.FallbackTitle(p.User.ID)
		}
		return entity.Info{ID: entity.MarkedID(&tg.PeerUser{UserID: p.User.ID}), Title: title}
	case p.Chat != nil:
		return entity.Info{ID: entity.MarkedID(&tg.PeerChat{ChatID: p.Chat.ID}), Title: p.Chat.Title}
	case p.Channel != nil:
		return entity.Info{ID: entity.MarkedID(&tg.PeerChannel{ChannelID: p.Channel.ID}), Title: p.Channel.Title}
	}
	return entity.Info{}
}

func markedFromInput(input tg.InputPeerClass) (int64, error) {
	switch p := input.(type) {
	case *tg.InputPeerUser:
		return entity.MarkedID(&tg.PeerUser{UserID: p.UserID}), nil
	case *tg.InputPeerChat:
		return entity.MarkedID(&tg.PeerChat{ChatID: p.ChatID}), nil
	case *tg.InputPeerChannel:
		return entity.MarkedID(&tg.PeerChannel{ChannelID: p.ChannelID}), nil
	}
	return 0, errors.Errorf("unexpected peer type %T", input)
}

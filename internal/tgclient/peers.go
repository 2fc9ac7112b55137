package tgclient

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/storage"
	"github.com/gotd/td/tg"

	"github.com/telemgr/telemgr/internal/entity"
)

// InputPeer turns a signed chat id into an input peer for API calls,
// answered from the peer storage. The account itself never needs a
// cache entry.
func (c *Client) InputPeer(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	if self := c.Self(); self != nil && id == self.ID {
		return &tg.InputPeerSelf{}, nil
	}
	p, err := storage.FindPeer(ctx, c.peerDB, entity.AsPeer(id))
	if err != nil {
		return nil, errors.Wrapf(err, "peer %d not cached, send sync to refresh dialogs", id)
	}
	return p.AsInputPeer(), nil
}

package entity

import "github.com/gotd/td/tg"

// channelMark offsets channel ids in the signed id convention used
// throughout the config file: users keep their id, basic chats are
// negated, channels are negated past the mark.
const channelMark = 1000000000000

// PeerKind classifies a signed id.
type PeerKind int

const (
	PeerUser PeerKind = iota
	PeerChat
	PeerChannel
)

// MarkedID converts a peer to its signed id.
func MarkedID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelMark + p.ChannelID)
	}
	return 0
}

// SplitID breaks a signed id into its kind and the bare Telegram id.
func SplitID(marked int64) (PeerKind, int64) {
	switch {
	case marked < -channelMark:
		return PeerChannel, -marked - channelMark
	case marked < 0:
		return PeerChat, -marked
	default:
		return PeerUser, marked
	}
}

// AsPeer converts a signed id back to a peer.
func AsPeer(marked int64) tg.PeerClass {
	kind, id := SplitID(marked)
	switch kind {
	case PeerChannel:
		return &tg.PeerChannel{ChannelID: id}
	case PeerChat:
		return &tg.PeerChat{ChatID: id}
	default:
		return &tg.PeerUser{UserID: id}
	}
}

package tgclient

import "github.com/gotd/td/tg"

// InputMedia converts received media into a form that can be sent
// again. Photos and documents carry reusable file references; for
// anything else the caller degrades to a text-only send.
func InputMedia(media tg.MessageMediaClass) (tg.InputMediaClass, bool) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		p, ok := m.GetPhoto()
		if !ok {
			return nil, false
		}
		photo, ok := p.(*tg.Photo)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
			},
		}, true
	case *tg.MessageMediaDocument:
		d, ok := m.GetDocument()
		if !ok {
			return nil, false
		}
		doc, ok := d.(*tg.Document)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, true
	}
	return nil, false
}

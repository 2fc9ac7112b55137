package tgclient

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestInputMedia(t *testing.T) {
	photo := &tg.MessageMediaPhoto{}
	photo.SetPhoto(&tg.Photo{ID: 5, AccessHash: 6, FileReference: []byte{7}})

	doc := &tg.MessageMediaDocument{}
	doc.SetDocument(&tg.Document{ID: 8, AccessHash: 9, FileReference: []byte{10}})

	t.Run("photo", func(t *testing.T) {
		got, ok := InputMedia(photo)
		if !ok {
			t.Fatal("InputMedia() not convertible")
		}
		input, ok := got.(*tg.InputMediaPhoto)
		if !ok {
			t.Fatalf("InputMedia() = %T, want *tg.InputMediaPhoto", got)
		}
		id, ok := input.ID.(*tg.InputPhoto)
		if !ok || id.ID != 5 || id.AccessHash != 6 {
			t.Errorf("converted photo = %+v", input.ID)
		}
	})

	t.Run("document", func(t *testing.T) {
		got, ok := InputMedia(doc)
		if !ok {
			t.Fatal("InputMedia() not convertible")
		}
		input, ok := got.(*tg.InputMediaDocument)
		if !ok {
			t.Fatalf("InputMedia() = %T, want *tg.InputMediaDocument", got)
		}
		id, ok := input.ID.(*tg.InputDocument)
		if !ok || id.ID != 8 || id.AccessHash != 9 {
			t.Errorf("converted document = %+v", input.ID)
		}
	})

	t.Run("not convertible", func(t *testing.T) {
		for _, media := range []tg.MessageMediaClass{
			&tg.MessageMediaWebPage{},
			&tg.MessageMediaPoll{},
			&tg.MessageMediaPhoto{},
			nil,
		} {
			if _, ok := InputMedia(media); ok {
				t.Errorf("InputMedia(%T) convertible, want not", media)
			}
		}
	})
}

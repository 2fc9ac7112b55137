package dlbot

import (
	"path/filepath"
	"strings"
)

// Kind is a download category; its value is the subdirectory name
// under the download root.
type Kind string

const (
	KindVideo    Kind = "videos"
	KindAudio    Kind = "audios"
	KindImage    Kind = "images"
	KindDocument Kind = "documents"
	KindTorrent  Kind = "torrents"
	KindYouTube  Kind = "youtube"
)

// KindFor routes a file by MIME type and name. Torrents are matched on
// either signal so a generically typed .torrent still lands in the
// watch directory.
func KindFor(mimeType, filename string) Kind {
	if mimeType == "application/x-bittorrent" || strings.EqualFold(filepath.Ext(filename), ".torrent") {
		return KindTorrent
	}
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	}
	return KindDocument
}

package dlbot

import "testing"

func TestKindFor(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		filename string
		want     Kind
	}{
		{"mp4 video", "video/mp4", "movie.mp4", KindVideo},
		{"matroska video", "video/x-matroska", "movie.mkv", KindVideo},
		{"mp3 audio", "audio/mpeg", "song.mp3", KindAudio},
		{"jpeg image", "image/jpeg", "pic.jpg", KindImage},
		{"pdf document", "application/pdf", "paper.pdf", KindDocument},
		{"torrent mime", "application/x-bittorrent", "linux.torrent", KindTorrent},
		{"torrent extension with generic mime", "application/octet-stream", "linux.torrent", KindTorrent},
		{"torrent extension uppercase", "application/octet-stream", "LINUX.TORRENT", KindTorrent},
		{"no hints", "application/octet-stream", "blob.bin", KindDocument},
		{"empty", "", "", KindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindFor(tt.mimeType, tt.filename); got != tt.want {
				t.Errorf("KindFor(%q, %q) = %q, want %q", tt.mimeType, tt.filename, got, tt.want)
			}
		})
	}
}

package dlbot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	youtube "github.com/kkdai/youtube/v2"

	"github.com/telemgr/telemgr/internal/tgclient"
)

// clientFetcher downloads Telegram media through the connected client
// and YouTube videos over HTTP.
type clientFetcher struct {
	client *tgclient.Client
	yt     *youtube.Client
}

// NewFetcher returns a Fetcher backed by the connected client.
func NewFetcher(client *tgclient.Client) Fetcher {
	return &clientFetcher{client: client, yt: &youtube.Client{}}
}

func (f *clientFetcher) FetchDocument(ctx context.Context, doc *tg.Document, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrap(err, "create directory")
	}

	d := downloader.NewDownloader()
	if _, err := d.Download(f.client.API(), doc.AsInputDocumentFileLocation()).ToPath(ctx, path); err != nil {
		return 0, errors.Wrap(err, "download document")
	}
	return doc.Size, nil
}

func (f *clientFetcher) FetchPhoto(ctx context.Context, photo *tg.Photo, path string) (int64, error) {
	typ, size := largestPhotoSize(photo)
	if typ == "" {
		return 0, errors.New("photo has no downloadable size")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrap(err, "create directory")
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     typ,
	}
	d := downloader.NewDownloader()
	if _, err := d.Download(f.client.API(), loc).ToPath(ctx, path); err != nil {
		return 0, errors.Wrap(err, "download photo")
	}
	return int64(size), nil
}

func largestPhotoSize(photo *tg.Photo) (string, int) {
	var (
		typ  string
		best int
	)
	for _, s := range photo.Sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			if v.Size > best {
				best, typ = v.Size, v.Type
			}
		case *tg.PhotoSizeProgressive:
			if n := len(v.Sizes); n > 0 && v.Sizes[n-1] > best {
				best, typ = v.Sizes[n-1], v.Type
			}
		}
	}
	return typ, best
}

func (f *clientFetcher) FetchYouTube(ctx context.Context, url, dir string) (string, int64, error) {
	video, err := f.yt.GetVideoContext(ctx, url)
	if err != nil {
		return "", 0, errors.Wrap(err, "fetch video info")
	}

	format := bestProgressiveMP4(video)
	if format == nil {
		return "", 0, errors.New("no playable mp4 format")
	}

	stream, _, err := f.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", 0, errors.Wrap(err, "open stream")
	}
	defer func() { _ = stream.Close() }()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, errors.Wrap(err, "create directory")
	}
	name := sanitizeFilename(video.Title)
	if name == "" {
		name = video.ID
	}
	path := uniquePath(filepath.Join(dir, name+".mp4"))

	out, err := os.Create(path)
	if err != nil {
		return "", 0, errors.Wrap(err, "create file")
	}
	n, err := io.Copy(out, stream)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, errors.Wrap(err, "save video")
	}
	return path, n, nil
}

// bestProgressiveMP4 picks the highest bitrate mp4 format carrying both
// audio and video, so no merging step is needed.
func bestProgressiveMP4(video *youtube.Video) *youtube.Format {
	formats := video.Formats.WithAudioChannels()
	best := -1
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.QualityLabel == "" || f.AudioQuality == "" {
			continue
		}
		if best < 0 || f.Bitrate > formats[best].Bitrate {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &formats[best]
}

// sanitizeFilename keeps video titles filesystem-safe.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

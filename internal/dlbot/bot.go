package dlbot

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"golang.org/x/sync/errgroup"

	"github.com/telemgr/telemgr/internal/entity"
)

// Version is reported by the /version command.
const Version = "1.0.0"

const defaultQueueSize = 100

var (
	// ErrMissingRegistry is returned when New gets no registry.
	ErrMissingRegistry = errors.New("dlbot: missing registry")

	// ErrMissingFetcher is returned when New gets no fetcher.
	ErrMissingFetcher = errors.New("dlbot: missing fetcher")

	// ErrMissingSender is returned when New gets no sender.
	ErrMissingSender = errors.New("dlbot: missing sender")
)

// Fetcher performs the actual transfers.
type Fetcher interface {
	// FetchDocument saves doc to path and returns the byte count.
	FetchDocument(ctx context.Context, doc *tg.Document, path string) (int64, error)

	// FetchPhoto saves the largest size of photo to path.
	FetchPhoto(ctx context.Context, photo *tg.Photo, path string) (int64, error)

	// FetchYouTube saves the video behind url under dir and returns the
	// file path and size.
	FetchYouTube(ctx context.Context, url, dir string) (string, int64, error)
}

// Sender posts and edits the bot's replies.
type Sender interface {
	SendText(ctx context.Context, chat int64, replyTo int, text string) (int, error)
	Edit(ctx context.Context, chat int64, msgID int, text string) error
}

// Options configures the bot.
type Options struct {
	// Config is the loaded bot configuration.
	Config Config

	// Registry records completed downloads.
	Registry *Registry

	// Fetcher performs transfers.
	Fetcher Fetcher

	// Sender posts replies.
	Sender Sender

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// QueueSize bounds the pending job queue. Defaults to 100.
	QueueSize int
}

// Bot is the downloader engine: HandleMessage classifies and enqueues,
// Run drains the queue with a fixed worker pool.
type Bot struct {
	cfg      Config
	registry *Registry
	fetcher  Fetcher
	sender   Sender
	log      *slog.Logger

	jobs   chan job
	active atomic.Int64
}

type job struct {
	chat   int64
	msgID  int
	notice int
	kind   Kind
	label  string
	fetch  func(ctx context.Context) (string, int64, error)
}

// New builds the bot.
func New(opts Options) (*Bot, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	switch {
	case opts.Registry == nil:
		return nil, ErrMissingRegistry
	case opts.Fetcher == nil:
		return nil, ErrMissingFetcher
	case opts.Sender == nil:
		return nil, ErrMissingSender
	}
	return &Bot{
		cfg:      opts.Config,
		registry: opts.Registry,
		fetcher:  opts.Fetcher,
		sender:   opts.Sender,
		log:      opts.Logger,
		jobs:     make(chan job, opts.QueueSize),
	}, nil
}

// Run creates the download directories and processes queued jobs with
// max_parallel workers until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	for _, kind := range []Kind{KindVideo, KindAudio, KindImage, KindDocument, KindTorrent, KindYouTube} {
		if err := os.MkdirAll(b.cfg.Downloads.Dir(kind), 0755); err != nil {
			return errors.Wrap(err, "create download directory")
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for range b.cfg.Features.MaxParallel {
		g.Go(func() error { return b.worker(ctx) })
	}
	return g.Wait()
}

func (b *Bot) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-b.jobs:
			b.process(ctx, j)
		}
	}
}

func (b *Bot) process(ctx context.Context, j job) {
	b.active.Add(1)
	defer b.active.Add(-1)

	b.log.Info("download started", "label", j.label, "kind", j.kind)
	path, size, err := j.fetch(ctx)
	if err != nil {
		b.log.Error("download failed", "label", j.label, "error", err)
		b.editNotice(ctx, j, fmt.Sprintf("❌ %s", err))
		return
	}

	rec := Download{
		Name:      filepath.Base(path),
		Path:      path,
		Size:      size,
		Kind:      j.kind,
		Chat:      j.chat,
		Message:   j.msgID,
		CreatedAt: time.Now(),
	}
	if err := b.registry.Add(ctx, rec); err != nil {
		b.log.Error("registry insert failed", "path", path, "error", err)
	}

	b.log.Info("download finished", "path", path, "size", size)
	b.editNotice(ctx, j, fmt.Sprintf("✅ Saved to %s", path))
}

func (b *Bot) editNotice(ctx context.Context, j job, text string) {
	if j.notice == 0 {
		return
	}
	if err := b.sender.Edit(ctx, j.chat, j.notice, text); err != nil {
		b.log.Error("notice edit failed", "chat", j.chat, "error", err)
	}
}

// HandleMessage runs one inbound message through the authorization
// gate, the command table, and the download classifier.
func (b *Bot) HandleMessage(ctx context.Context, msg *tg.Message) {
	chat := entity.MarkedID(msg.PeerID)
	sender := senderID(msg)

	if !b.cfg.Authorized(sender) {
		b.log.Warn("unauthorized user", "user", sender, "chat", chat)
		b.reply(ctx, chat, msg.ID, "⛔️ You are not authorized to use this bot.")
		return
	}

	text := strings.TrimSpace(msg.Message)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chat, msg.ID, text)
		return
	}

	if media, ok := msg.GetMedia(); ok {
		if b.enqueueMedia(ctx, chat, msg.ID, media) {
			return
		}
	}
	if url, ok := youtubeURL(text); ok {
		b.enqueue(ctx, chat, msg.ID, job{
			chat:  chat,
			msgID: msg.ID,
			kind:  KindYouTube,
			label: url,
			fetch: func(ctx context.Context) (string, int64, error) {
				return b.fetcher.FetchYouTube(ctx, url, b.cfg.Downloads.Dir(KindYouTube))
			},
		})
		return
	}

	b.log.Debug("message not downloadable", "chat", chat, "msg", msg.ID)
}

// enqueueMedia builds a job for document or photo media. Reports
// whether the media was downloadable.
func (b *Bot) enqueueMedia(ctx context.Context, chat int64, msgID int, media tg.MessageMediaClass) bool {
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		docClass, ok := m.GetDocument()
		if !ok {
			return false
		}
		doc, ok := docClass.(*tg.Document)
		if !ok {
			return false
		}
		name := documentName(doc)
		kind := KindFor(doc.MimeType, name)
		dir := b.cfg.Downloads.Dir(kind)
		b.enqueue(ctx, chat, msgID, job{
			chat:  chat,
			msgID: msgID,
			kind:  kind,
			label: name,
			fetch: func(ctx context.Context) (string, int64, error) {
				path := uniquePath(filepath.Join(dir, name))
				n, err := b.fetcher.FetchDocument(ctx, doc, path)
				return path, n, err
			},
		})
		return true

	case *tg.MessageMediaPhoto:
		photoClass, ok := m.GetPhoto()
		if !ok {
			return false
		}
		photo, ok := photoClass.(*tg.Photo)
		if !ok {
			return false
		}
		name := fmt.Sprintf("photo_%d.jpg", photo.ID)
		dir := b.cfg.Downloads.Dir(KindImage)
		b.enqueue(ctx, chat, msgID, job{
			chat:  chat,
			msgID: msgID,
			kind:  KindImage,
			label: name,
			fetch: func(ctx context.Context) (string, int64, error) {
				path := uniquePath(filepath.Join(dir, name))
				n, err := b.fetcher.FetchPhoto(ctx, photo, path)
				return path, n, err
			},
		})
		return true
	}
	return false
}

// enqueue replies with the download notice and queues the job. A full
// queue is reported to the user instead of blocking update handling.
func (b *Bot) enqueue(ctx context.Context, chat int64, msgID int, j job) {
	notice, err := b.sender.SendText(ctx, chat, msgID, "📥 Downloading...")
	if err != nil {
		b.log.Error("notice send failed", "chat", chat, "error", err)
	}
	j.notice = notice

	select {
	case b.jobs <- j:
	default:
		b.log.Warn("job queue full", "label", j.label)
		b.editNotice(ctx, j, "❌ Download queue is full, try again later.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, chat int64, msgID int, text string) {
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	switch cmd {
	case "/start":
		b.reply(ctx, chat, msgID, "👋 Ready to download. Send me a file or a YouTube link, or /help for details.")
	case "/help":
		b.reply(ctx, chat, msgID, helpText)
	case "/status":
		b.reply(ctx, chat, msgID, b.statusText(ctx))
	case "/version":
		b.reply(ctx, chat, msgID, fmt.Sprintf("🤖 telemgr downloader %s", Version))
	default:
		b.log.Debug("unknown command", "command", cmd)
	}
}

const helpText = `📥 Send me any file and I will store it on the server.

Commands:
/start - welcome message
/help - this help
/status - pool state and recent downloads
/version - bot version

Files are sorted by type: videos, audios, images, documents.
Torrent files land in the torrents watch directory.
YouTube links (youtube.com, youtu.be) are downloaded as mp4.`

func (b *Bot) statusText(ctx context.Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🤖 Downloader status\n\n")
	fmt.Fprintf(&sb, "Active downloads: %d\n", b.active.Load())
	fmt.Fprintf(&sb, "Queued: %d\n", len(b.jobs))
	fmt.Fprintf(&sb, "Download dir: %s\n", b.cfg.Downloads.BasePath)

	if n, err := b.registry.Count(ctx); err != nil {
		b.log.Error("registry count failed", "error", err)
	} else {
		fmt.Fprintf(&sb, "Completed: %d\n", n)
	}

	recent, err := b.registry.Recent(ctx, 5)
	if err != nil {
		b.log.Error("registry query failed", "error", err)
	}
	if len(recent) > 0 {
		sb.WriteString("\nRecent:\n")
		for _, d := range recent {
			fmt.Fprintf(&sb, "• %s (%s, %s)\n", d.Name, d.Kind, humanize.Bytes(uint64(d.Size)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) reply(ctx context.Context, chat int64, replyTo int, text string) {
	if _, err := b.sender.SendText(ctx, chat, replyTo, text); err != nil {
		b.log.Error("reply failed", "chat", chat, "error", err)
	}
}

func senderID(msg *tg.Message) int64 {
	if from, ok := msg.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok {
			return u.UserID
		}
		return 0
	}
	if u, ok := msg.PeerID.(*tg.PeerUser); ok {
		return u.UserID
	}
	return 0
}

// documentName prefers the filename attribute and falls back to the
// document id with an extension derived from the MIME type.
func documentName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if a, ok := attr.(*tg.DocumentAttributeFilename); ok && a.FileName != "" {
			return a.FileName
		}
	}
	if exts, _ := mime.ExtensionsByType(doc.MimeType); len(exts) > 0 {
		return fmt.Sprintf("file_%d%s", doc.ID, exts[0])
	}
	return fmt.Sprintf("file_%d", doc.ID)
}

// youtubeURL extracts the first YouTube link in text.
func youtubeURL(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if strings.Contains(field, "youtube.com/") || strings.Contains(field, "youtu.be/") {
			return field, true
		}
	}
	return "", false
}

// uniquePath returns path, or a numbered variant when a file is
// already there.
func uniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		next := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Stat(next); err != nil {
			return next
		}
	}
}

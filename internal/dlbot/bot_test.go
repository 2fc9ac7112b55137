package dlbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tg"
)

const testUserID = 42

type sentText struct {
	Chat    int64
	ReplyTo int
	Text    string
}

type sentEdit struct {
	Chat  int64
	MsgID int
	Text  string
}

type fakeSender struct {
	mu     sync.Mutex
	nextID int
	texts  []sentText
	edits  []sentEdit
}

func newFakeSender() *fakeSender {
	return &fakeSender{nextID: 1000}
}

func (s *fakeSender) SendText(_ context.Context, chat int64, replyTo int, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.texts = append(s.texts, sentText{Chat: chat, ReplyTo: replyTo, Text: text})
	return s.nextID, nil
}

func (s *fakeSender) Edit(_ context.Context, chat int64, msgID int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, sentEdit{Chat: chat, MsgID: msgID, Text: text})
	return nil
}

func (s *fakeSender) allTexts() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentText(nil), s.texts...)
}

func (s *fakeSender) allEdits() []sentEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEdit(nil), s.edits...)
}

type fetchCall struct {
	What string
	Path string
}

type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	calls []fetchCall
}

func (f *fakeFetcher) FetchDocument(_ context.Context, doc *tg.Document, path string) (int64, error) {
	f.record(fetchCall{What: "document", Path: path})
	if f.err != nil {
		return 0, f.err
	}
	return doc.Size, nil
}

func (f *fakeFetcher) FetchPhoto(_ context.Context, _ *tg.Photo, path string) (int64, error) {
	f.record(fetchCall{What: "photo", Path: path})
	if f.err != nil {
		return 0, f.err
	}
	return 512, nil
}

func (f *fakeFetcher) FetchYouTube(_ context.Context, url, dir string) (string, int64, error) {
	f.record(fetchCall{What: "youtube", Path: dir})
	if f.err != nil {
		return "", 0, f.err
	}
	return filepath.Join(dir, "video.mp4"), 2048, nil
}

func (f *fakeFetcher) record(c fetchCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeFetcher) allCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type botEnv struct {
	bot     *Bot
	sender  *fakeSender
	fetcher *fakeFetcher
	base    string
}

func newTestBot(t *testing.T, queueSize int) botEnv {
	t.Helper()

	reg := openTestRegistry(t, filepath.Join(t.TempDir(), "downloads.db"))
	sender := newFakeSender()
	fetcher := &fakeFetcher{}
	cfg := Config{
		Telegram:  TelegramSection{APIID: 1, APIHash: "h", BotToken: "t", AuthorizedUserIDs: []int64{testUserID}},
		Downloads: DownloadsSection{BasePath: t.TempDir()},
		Features:  FeaturesSection{MaxParallel: 2},
	}

	bot, err := New(Options{
		Config:    cfg,
		Registry:  reg,
		Fetcher:   fetcher,
		Sender:    sender,
		Logger:    slog.New(slog.DiscardHandler),
		QueueSize: queueSize,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return botEnv{bot: bot, sender: sender, fetcher: fetcher, base: cfg.Downloads.BasePath}
}

// drainOne processes a single queued job synchronously.
func drainOne(t *testing.T, b *Bot) {
	t.Helper()
	select {
	case j := <-b.jobs:
		b.process(context.Background(), j)
	default:
		t.Fatal("no job queued")
	}
}

func userMessage(user int64, id int, text string) *tg.Message {
	return &tg.Message{ID: id, Message: text, PeerID: &tg.PeerUser{UserID: user}}
}

func documentMessage(user int64, id int, name, mimeType string, size int64) *tg.Message {
	doc := &tg.Document{ID: 777, AccessHash: 1, MimeType: mimeType, Size: size}
	if name != "" {
		doc.Attributes = []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: name}}
	}
	media := &tg.MessageMediaDocument{}
	media.SetDocument(doc)

	msg := userMessage(user, id, "")
	msg.SetMedia(media)
	return msg
}

func photoMessage(user int64, id int) *tg.Message {
	media := &tg.MessageMediaPhoto{}
	media.SetPhoto(&tg.Photo{ID: 99, AccessHash: 2, FileReference: []byte{3}})

	msg := userMessage(user, id, "")
	msg.SetMedia(media)
	return msg
}

func TestNewValidatesOptions(t *testing.T) {
	reg := openTestRegistry(t, filepath.Join(t.TempDir(), "downloads.db"))
	sender := newFakeSender()
	fetcher := &fakeFetcher{}

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"missing registry", Options{Fetcher: fetcher, Sender: sender}, ErrMissingRegistry},
		{"missing fetcher", Options{Registry: reg, Sender: sender}, ErrMissingFetcher},
		{"missing sender", Options{Registry: reg, Fetcher: fetcher}, ErrMissingSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnauthorizedUserRefused(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), userMessage(99, 1, "/start"))

	texts := env.sender.allTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d replies, want 1", len(texts))
	}
	if want := "⛔️ You are not authorized to use this bot."; texts[0].Text != want {
		t.Errorf("reply = %q, want %q", texts[0].Text, want)
	}
	if texts[0].Chat != 99 || texts[0].ReplyTo != 1 {
		t.Errorf("reply addressed to chat %d msg %d, want 99/1", texts[0].Chat, texts[0].ReplyTo)
	}
	if len(env.bot.jobs) != 0 {
		t.Errorf("queued %d jobs, want 0", len(env.bot.jobs))
	}
}

func TestCommandReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"start", "/start", "👋 Ready to download. Send me a file or a YouTube link, or /help for details."},
		{"help", "/help", helpText},
		{"addressed help", "/help@telemgr_dl_bot", helpText},
		{"version", "/version", "🤖 telemgr downloader 1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestBot(t, 0)
			env.bot.HandleMessage(context.Background(), userMessage(testUserID, 5, tt.text))

			texts := env.sender.allTexts()
			if len(texts) != 1 {
				t.Fatalf("sent %d replies, want 1", len(texts))
			}
			if texts[0].Text != tt.want {
				t.Errorf("reply = %q, want %q", texts[0].Text, tt.want)
			}
		})
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), userMessage(testUserID, 5, "/frobnicate now"))

	if n := len(env.sender.allTexts()); n != 0 {
		t.Errorf("sent %d replies, want 0", n)
	}
}

func TestStatusCommand(t *testing.T) {
	env := newTestBot(t, 0)
	err := env.bot.registry.Add(context.Background(), Download{
		Name: "clip.mp4", Path: "/dl/videos/clip.mp4", Size: 2048,
		Kind: KindVideo, Chat: testUserID, Message: 3, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	env.bot.HandleMessage(context.Background(), userMessage(testUserID, 5, "/status"))

	texts := env.sender.allTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d replies, want 1", len(texts))
	}
	for _, want := range []string{
		"Active downloads: 0",
		"Queued: 0",
		fmt.Sprintf("Download dir: %s", env.base),
		"Completed: 1",
		"clip.mp4 (videos, 2.0 kB)",
	} {
		if !strings.Contains(texts[0].Text, want) {
			t.Errorf("status reply missing %q:\n%s", want, texts[0].Text)
		}
	}
}

func TestDocumentDownload(t *testing.T) {
	env := newTestBot(t, 0)
	ctx := context.Background()

	env.bot.HandleMessage(ctx, documentMessage(testUserID, 7, "movie.mkv", "video/x-matroska", 4096))

	texts := env.sender.allTexts()
	if len(texts) != 1 || texts[0].Text != "📥 Downloading..." {
		t.Fatalf("notice = %+v, want single 📥 Downloading...", texts)
	}

	drainOne(t, env.bot)

	wantPath := filepath.Join(env.base, "videos", "movie.mkv")
	calls := env.fetcher.allCalls()
	if len(calls) != 1 || calls[0].What != "document" || calls[0].Path != wantPath {
		t.Errorf("fetch calls = %+v, want document at %s", calls, wantPath)
	}

	edits := env.sender.allEdits()
	if len(edits) != 1 {
		t.Fatalf("made %d edits, want 1", len(edits))
	}
	if want := fmt.Sprintf("✅ Saved to %s", wantPath); edits[0].Text != want {
		t.Errorf("edit = %q, want %q", edits[0].Text, want)
	}
	if edits[0].MsgID != 1001 {
		t.Errorf("edit targeted message %d, want the notice id 1001", edits[0].MsgID)
	}

	recent, err := env.bot.registry.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("registry holds %d records, want 1", len(recent))
	}
	rec := recent[0]
	if rec.Name != "movie.mkv" || rec.Kind != KindVideo || rec.Size != 4096 ||
		rec.Chat != testUserID || rec.Message != 7 {
		t.Errorf("record = %+v, want movie.mkv/videos/4096 from chat %d msg 7", rec, testUserID)
	}
}

func TestTorrentRouting(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), documentMessage(testUserID, 7, "ubuntu.torrent", "application/octet-stream", 100))
	drainOne(t, env.bot)

	wantPath := filepath.Join(env.base, "torrents", "ubuntu.torrent")
	calls := env.fetcher.allCalls()
	if len(calls) != 1 || calls[0].Path != wantPath {
		t.Errorf("fetch calls = %+v, want %s", calls, wantPath)
	}
}

func TestPhotoDownload(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), photoMessage(testUserID, 9))
	drainOne(t, env.bot)

	wantPath := filepath.Join(env.base, "images", "photo_99.jpg")
	calls := env.fetcher.allCalls()
	if len(calls) != 1 || calls[0].What != "photo" || calls[0].Path != wantPath {
		t.Errorf("fetch calls = %+v, want photo at %s", calls, wantPath)
	}

	recent, err := env.bot.registry.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 || recent[0].Size != 512 || recent[0].Kind != KindImage {
		t.Errorf("record = %+v, want photo_99.jpg/images/512", recent)
	}
}

func TestYouTubeLink(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), userMessage(testUserID, 11, "watch this https://youtu.be/dQw4w9WgXcQ please"))
	drainOne(t, env.bot)

	wantDir := filepath.Join(env.base, "youtube")
	calls := env.fetcher.allCalls()
	if len(calls) != 1 || calls[0].What != "youtube" || calls[0].Path != wantDir {
		t.Errorf("fetch calls = %+v, want youtube under %s", calls, wantDir)
	}

	edits := env.sender.allEdits()
	if len(edits) != 1 {
		t.Fatalf("made %d edits, want 1", len(edits))
	}
	if want := fmt.Sprintf("✅ Saved to %s", filepath.Join(wantDir, "video.mp4")); edits[0].Text != want {
		t.Errorf("edit = %q, want %q", edits[0].Text, want)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	env := newTestBot(t, 0)

	env.bot.HandleMessage(context.Background(), userMessage(testUserID, 11, "hello there"))

	if n := len(env.sender.allTexts()); n != 0 {
		t.Errorf("sent %d replies, want 0", n)
	}
	if n := len(env.bot.jobs); n != 0 {
		t.Errorf("queued %d jobs, want 0", n)
	}
}

func TestFailedDownloadReportsError(t *testing.T) {
	env := newTestBot(t, 0)
	env.fetcher.err = errors.New("connection reset")

	env.bot.HandleMessage(context.Background(), documentMessage(testUserID, 7, "big.iso", "application/octet-stream", 100))
	drainOne(t, env.bot)

	edits := env.sender.allEdits()
	if len(edits) != 1 {
		t.Fatalf("made %d edits, want 1", len(edits))
	}
	if want := "❌ connection reset"; edits[0].Text != want {
		t.Errorf("edit = %q, want %q", edits[0].Text, want)
	}

	n, err := env.bot.registry.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("registry Count() = %d, want 0 after failure", n)
	}
}

func TestQueueFull(t *testing.T) {
	env := newTestBot(t, 1)
	ctx := context.Background()

	env.bot.HandleMessage(ctx, documentMessage(testUserID, 1, "first.bin", "application/octet-stream", 1))
	env.bot.HandleMessage(ctx, documentMessage(testUserID, 2, "second.bin", "application/octet-stream", 1))

	if n := len(env.bot.jobs); n != 1 {
		t.Fatalf("queued %d jobs, want 1", n)
	}

	edits := env.sender.allEdits()
	if len(edits) != 1 {
		t.Fatalf("made %d edits, want 1", len(edits))
	}
	if want := "❌ Download queue is full, try again later."; edits[0].Text != want {
		t.Errorf("edit = %q, want %q", edits[0].Text, want)
	}
	if edits[0].MsgID != 1002 {
		t.Errorf("edit targeted message %d, want the second notice 1002", edits[0].MsgID)
	}
}

func TestRunProcessesQueue(t *testing.T) {
	env := newTestBot(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.bot.Run(ctx) }()

	env.bot.HandleMessage(ctx, documentMessage(testUserID, 7, "movie.mkv", "video/x-matroska", 4096))
	waitFor(t, func() bool { return len(env.sender.allEdits()) == 1 })

	for _, kind := range []Kind{KindVideo, KindTorrent, KindYouTube} {
		if _, err := os.Stat(filepath.Join(env.base, string(kind))); err != nil {
			t.Errorf("download dir %s not created: %v", kind, err)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

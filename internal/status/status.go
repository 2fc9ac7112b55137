// Package status maintains the externally consumed status file: a JSON
// snapshot of the cloner's health and counters, rewritten at startup,
// periodically, and around notable events.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"

	"github.com/telemgr/telemgr/internal/config"
)

// Reporter writes status snapshots. The processed counter and flags are
// safe for concurrent use; the settings half of each snapshot is read
// from the config store at write time.
type Reporter struct {
	path string
	cfg  *config.Store
	log  *slog.Logger

	processed    atomic.Int64
	running      atomic.Bool
	sessionValid atomic.Bool
}

type snapshot struct {
	Running           bool   `json:"running"`
	ProcessedMessages int64  `json:"processed_messages"`
	LastActivity      string `json:"last_activity"`
	SessionValid      bool   `json:"session_valid"`
	BotEnabled        bool   `json:"bot_enabled"`
	FilterWords       bool   `json:"filter_words"`
	AddSignature      bool   `json:"add_signature"`
	Signature         string `json:"signature"`
	TotalLinks        int    `json:"total_links"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

// New returns a reporter writing to path.
func New(path string, cfg *config.Store, log *slog.Logger) *Reporter {
	return &Reporter{path: path, cfg: cfg, log: log}
}

// Inc bumps the processed message counter and returns the new value.
func (r *Reporter) Inc() int64 { return r.processed.Add(1) }

// Processed returns the processed message counter.
func (r *Reporter) Processed() int64 { return r.processed.Load() }

// SetRunning records whether the run loop is active.
func (r *Reporter) SetRunning(v bool) { r.running.Store(v) }

// SetSessionValid records whether the account session authorized.
func (r *Reporter) SetSessionValid(v bool) { r.sessionValid.Store(v) }

// Write flushes a plain snapshot.
func (r *Reporter) Write() error { return r.write("", "") }

// WriteMessage flushes a snapshot carrying an informational message.
func (r *Reporter) WriteMessage(msg string) error { return r.write(msg, "") }

// WriteError flushes a snapshot carrying an error description.
func (r *Reporter) WriteError(errText string) error { return r.write("", errText) }

func (r *Reporter) write(msg, errText string) error {
	cfg := r.cfg.Snapshot()
	snap := snapshot{
		Running:           r.running.Load(),
		ProcessedMessages: r.processed.Load(),
		LastActivity:      time.Now().Format(time.RFC3339),
		SessionValid:      r.sessionValid.Load(),
		BotEnabled:        cfg.BotEnabled,
		FilterWords:       cfg.FilterWords,
		AddSignature:      cfg.AddSignature,
		Signature:         cfg.Signature,
		TotalLinks:        len(cfg.Entities),
		Message:           msg,
		Error:             errText,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode status")
	}
	if err := os.WriteFile(r.path, append(data, '\n'), 0600); err != nil {
		return errors.Wrap(err, "write status")
	}
	return nil
}

// Run rewrites the status file every interval until ctx is done. Write
// failures are logged and do not stop the loop.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Write(); err != nil {
				r.log.Error("periodic status write failed", "error", err)
			}
		}
	}
}

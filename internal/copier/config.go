// Package copier implements one-shot history copying: every message of
// a source chat re-sent into a destination chat, resuming from a
// persisted per-pair offset.
package copier

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/go-faster/errors"
)

// Pair is one copy job: source and destination entity references plus
// the id of the last message already copied.
type Pair struct {
	// Name identifies the pair in logs and offset updates.
	Name string `json:"name"`

	// From is the source entity reference.
	From string `json:"from"`

	// To is the destination entity reference.
	To string `json:"to"`

	// Offset is the last copied source message id. Zero starts from the
	// beginning of the history.
	Offset int `json:"offset"`
}

type pairsFile struct {
	Pairs []Pair `json:"pairs"`
}

// Store owns the pair file. The offset of a pair is rewritten after
// every copied message so interrupted jobs resume where they stopped.
type Store struct {
	mu    sync.Mutex
	path  string
	pairs []Pair
	log   *slog.Logger
}

// ErrUnknownPair is returned when an offset update names no configured
// pair.
var ErrUnknownPair = errors.New("copier: unknown pair")

// Open loads the pair file. A missing file is an empty job list, not an
// error.
func Open(path string, log *slog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no pair file, nothing to copy", "path", path)
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, "read pairs")
	}

	var f pairsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse pairs %s", path)
	}
	s.pairs = f.Pairs
	return s, nil
}

// Snapshot returns a copy of the configured pairs.
func (s *Store) Snapshot() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pairs)
}

// SetOffset records the last copied message id for a pair and persists
// the file before the change becomes visible.
func (s *Store) SetOffset(name string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.pairs)
	idx := slices.IndexFunc(next, func(p Pair) bool { return p.Name == name })
	if idx < 0 {
		return errors.Wrapf(ErrUnknownPair, "%q", name)
	}
	next[idx].Offset = offset

	data, err := json.MarshalIndent(pairsFile{Pairs: next}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return errors.Wrap(err, "persist pairs")
	}
	s.pairs = next
	return nil
}

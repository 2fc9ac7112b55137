// Package mapping persists which destination messages were produced
// from which source messages, so replies can be linked to the copy of
// the message they answer. The data is an optimization: losing it only
// costs reply linkage, so load errors are tolerated.
package mapping

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// DefaultMaxKeys bounds the store when no explicit cap is given.
const DefaultMaxKeys = 10000

// Entry is one forwarded copy of a source message. It is encoded on the
// wire as [chat, msg].
type Entry struct {
	Chat int64
	Msg  int
}

// MarshalJSON encodes the entry as [chat, msg].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{e.Chat, int64(e.Msg)})
}

// UnmarshalJSON decodes a [chat, msg] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(err, "mapping entry")
	}
	if len(pair) < 2 {
		return errors.New("mapping entry needs two elements")
	}
	e.Chat, e.Msg = pair[0], int(pair[1])
	return nil
}

// Store is a mutex-guarded message mapping file. Keys are
// "<sourceChat>:<sourceMsg>"; values are the copies made of that
// message, in the order they were sent. The key count is bounded:
// when full, the oldest keys are dropped first.
type Store struct {
	mu      sync.Mutex
	path    string
	maxKeys int
	entries map[string][]Entry
	order   []string // keys, oldest first
	log     *slog.Logger
}

// Open loads the mapping file at path. A missing file starts empty; an
// unreadable or corrupt file logs a warning and also starts empty.
func Open(path string, maxKeys int, log *slog.Logger) *Store {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	s := &Store{
		path:    path,
		maxKeys: maxKeys,
		entries: make(map[string][]Entry),
		log:     log,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		log.Warn("cannot read message mappings, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			log.Warn("corrupt message mappings, starting empty", "path", path, "error", err)
			s.entries = make(map[string][]Entry)
		}
	}

	// JSON objects carry no order, so reconstruct oldest-first from the
	// ids. Message ids grow over time within a chat, which makes this a
	// close match to true insertion order.
	s.order = make([]string, 0, len(s.entries))
	for k := range s.entries {
		s.order = append(s.order, k)
	}
	sort.Slice(s.order, func(i, j int) bool {
		ci, mi := splitKey(s.order[i])
		cj, mj := splitKey(s.order[j])
		if mi != mj {
			return mi < mj
		}
		return ci < cj
	})
	s.evictLocked()
	return s
}

// Record appends one forwarded copy for a source message and persists
// the store.
func (s *Store) Record(srcChat int64, srcMsg int, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(srcChat, srcMsg)
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
	s.entries[k] = append(s.entries[k], e)
	s.evictLocked()
	return s.saveLocked()
}

// ReplyTarget returns the id of the copy of a source message in the
// given destination chat, if one was recorded.
func (s *Store) ReplyTarget(srcChat int64, srcMsg int, targetChat int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[key(srcChat, srcMsg)] {
		if e.Chat == targetChat {
			return e.Msg, true
		}
	}
	return 0, false
}

// Len reports how many source messages are tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) evictLocked() {
	for len(s.order) > s.maxKeys {
		delete(s.entries, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode message mappings")
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return errors.Wrap(err, "write message mappings")
	}
	return nil
}

func key(chat int64, msg int) string {
	return strconv.FormatInt(chat, 10) + ":" + strconv.Itoa(msg)
}

func splitKey(k string) (chat, msg int64) {
	i := strings.LastIndexByte(k, ':')
	if i < 0 {
		return 0, 0
	}
	chat, _ = strconv.ParseInt(k[:i], 10, 64)
	msg, _ = strconv.ParseInt(k[i+1:], 10, 64)
	return chat, msg
}

package config

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/go-faster/errors"
)

// Store owns the configuration file. All reads go through Snapshot and
// all writes go through the mutators, which persist before the change
// becomes visible. A single Store instance must be the only writer of
// its file.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
	log  *slog.Logger
}

// Open loads the configuration at path, writing defaults when the file
// does not exist yet. A file that exists but cannot be parsed is an
// error rather than a silent reset, so a hand-edited file is never
// clobbered.
func Open(path string, log *slog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.cfg = Default()
		s.cfg.setDefaults()
		if err := writeFile(path, s.cfg); err != nil {
			return nil, errors.Wrap(err, "write default config")
		}
		log.Info("created default config", "path", path)
	case err != nil:
		return nil, errors.Wrap(err, "read config")
	default:
		if err := json.Unmarshal(data, &s.cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
		s.cfg.setDefaults()
	}

	if err := s.cfg.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// mutate applies fn to a copy of the configuration and persists it.
// When fn or the write fails, the visible state is unchanged.
func (s *Store) mutate(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := writeFile(s.path, next); err != nil {
		return errors.Wrap(err, "persist config")
	}
	s.cfg = next
	return nil
}

// AddRule appends a forwarding rule. The exact pair must not already
// exist and the reverse pair must not be configured, since that would
// bounce messages back and forth forever.
func (s *Store) AddRule(r Rule) error {
	return s.mutate(func(c *Config) error {
		for _, have := range c.Entities {
			if have.Source == r.Target && have.Target == r.Source {
				return ErrRuleCycle
			}
			if have == r {
				return ErrRuleExists
			}
		}
		c.Entities = append(c.Entities, r)
		return nil
	})
}

// RemoveRules deletes every rule with the given source and reports how
// many were removed. Nothing is written when no rule matched.
func (s *Store) RemoveRules(source int64) (int, error) {
	removed := 0
	err := s.mutate(func(c *Config) error {
		kept := c.Entities[:0]
		for _, r := range c.Entities {
			if r.Source == source {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if removed == 0 {
			return errNothingRemoved
		}
		c.Entities = kept
		return nil
	})
	if errors.Is(err, errNothingRemoved) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// FindFilter returns the filter with the given From word, if any.
func (s *Store) FindFilter(from string) (Filter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.cfg.Filters {
		if f.From == from {
			return f, true
		}
	}
	return Filter{}, false
}

// AddFilter appends a word filter. The From word must not already be
// filtered, and the reverse pair must not exist since applying both
// would flip text back on the next edit.
func (s *Store) AddFilter(f Filter) error {
	return s.mutate(func(c *Config) error {
		for _, have := range c.Filters {
			if have.From == f.To && have.To == f.From {
				return ErrFilterCycle
			}
			if have.From == f.From {
				return ErrFilterExists
			}
		}
		c.Filters = append(c.Filters, f)
		return nil
	})
}

// RemoveFilters deletes every filter with the given From word and
// reports how many were removed. Nothing is written when none matched.
func (s *Store) RemoveFilters(from string) (int, error) {
	removed := 0
	err := s.mutate(func(c *Config) error {
		kept := c.Filters[:0]
		for _, f := range c.Filters {
			if f.From == from {
				removed++
				continue
			}
			kept = append(kept, f)
		}
		if removed == 0 {
			return errNothingRemoved
		}
		c.Filters = kept
		return nil
	})
	if errors.Is(err, errNothingRemoved) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// SetEnabled toggles forwarding.
func (s *Store) SetEnabled(v bool) error {
	return s.mutate(func(c *Config) error {
		c.BotEnabled = v
		return nil
	})
}

// SetFilterWords toggles word filtering.
func (s *Store) SetFilterWords(v bool) error {
	return s.mutate(func(c *Config) error {
		c.FilterWords = v
		return nil
	})
}

// SetAddSignature toggles the signature suffix.
func (s *Store) SetAddSignature(v bool) error {
	return s.mutate(func(c *Config) error {
		c.AddSignature = v
		return nil
	})
}

// SetSignature replaces the signature text.
func (s *Store) SetSignature(text string) error {
	return s.mutate(func(c *Config) error {
		c.Signature = text
		return nil
	})
}

// errNothingRemoved short-circuits mutate without touching the file.
var errNothingRemoved = errors.New("config: nothing removed")

func writeFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("TG_API_HASH", "abcdef")

	s, err := Open(filepath.Join(t.TempDir(), "config.json"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestOpenCreatesDefaults(t *testing.T) {
	s := openTestStore(t)

	cfg := s.Snapshot()
	if !cfg.BotEnabled {
		t.Error("BotEnabled = false, want true")
	}
	if !cfg.FilterWords {
		t.Error("FilterWords = false, want true")
	}
	if cfg.AddSignature {
		t.Error("AddSignature = true, want false")
	}
	if cfg.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", cfg.APIID)
	}
	if cfg.APIHash != "abcdef" {
		t.Errorf("APIHash = %q, want %q", cfg.APIHash, "abcdef")
	}

	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestOpenMissingCredentials(t *testing.T) {
	t.Setenv("TG_API_ID", "")
	t.Setenv("TG_API_HASH", "")

	_, err := Open(filepath.Join(t.TempDir(), "config.json"), testLogger())
	if !errors.Is(err, ErrMissingAPIID) {
		t.Errorf("Open() error = %v, want %v", err, ErrMissingAPIID)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("TG_API_HASH", "abcdef")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, testLogger()); err == nil {
		t.Error("Open() on corrupt file succeeded, want error")
	}
}

func TestAddRulePersists(t *testing.T) {
	s := openTestStore(t)

	if err := s.AddRule(Rule{Source: 1, Target: 2}); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}

	reopened, err := Open(s.Path(), testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got := reopened.Snapshot().Entities
	if len(got) != 1 || got[0] != (Rule{Source: 1, Target: 2}) {
		t.Errorf("reopened entities = %+v, want [{1 2}]", got)
	}
}

func TestAddRuleRejections(t *testing.T) {
	tests := []struct {
		name    string
		add     Rule
		wantErr error
	}{
		{name: "exact duplicate", add: Rule{Source: 1, Target: 2}, wantErr: ErrRuleExists},
		{name: "reverse pair", add: Rule{Source: 2, Target: 1}, wantErr: ErrRuleCycle},
		{name: "same source new target ok", add: Rule{Source: 1, Target: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			if err := s.AddRule(Rule{Source: 1, Target: 2}); err != nil {
				t.Fatalf("seed AddRule() error = %v", err)
			}
			before, err := os.ReadFile(s.Path())
			if err != nil {
				t.Fatal(err)
			}

			err = s.AddRule(tt.add)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddRule(%+v) error = %v, want %v", tt.add, err, tt.wantErr)
			}

			if tt.wantErr != nil {
				if got := s.Snapshot().Entities; len(got) != 1 {
					t.Errorf("entities after rejection = %+v, want unchanged", got)
				}
				after, err := os.ReadFile(s.Path())
				if err != nil {
					t.Fatal(err)
				}
				if string(before) != string(after) {
					t.Error("file changed after rejected mutation")
				}
			}
		})
	}
}

func TestRemoveRules(t *testing.T) {
	s := openTestStore(t)
	for _, r := range []Rule{{Source: 1, Target: 2}, {Source: 1, Target: 3}, {Source: 4, Target: 5}} {
		if err := s.AddRule(r); err != nil {
			t.Fatalf("AddRule(%+v) error = %v", r, err)
		}
	}

	n, err := s.RemoveRules(1)
	if err != nil {
		t.Fatalf("RemoveRules(1) error = %v", err)
	}
	if n != 2 {
		t.Errorf("RemoveRules(1) = %d, want 2", n)
	}
	if got := s.Snapshot().Entities; len(got) != 1 || got[0].Source != 4 {
		t.Errorf("entities after remove = %+v, want [{4 5}]", got)
	}

	n, err = s.RemoveRules(99)
	if err != nil {
		t.Fatalf("RemoveRules(99) error = %v", err)
	}
	if n != 0 {
		t.Errorf("RemoveRules(99) = %d, want 0", n)
	}
}

func TestAddFilterRejections(t *testing.T) {
	tests := []struct {
		name    string
		add     Filter
		wantErr error
	}{
		{name: "duplicate from", add: Filter{From: "foo", To: "baz"}, wantErr: ErrFilterExists},
		{name: "reverse pair", add: Filter{From: "bar", To: "foo"}, wantErr: ErrFilterCycle},
		{name: "distinct ok", add: Filter{From: "qux", To: "quux"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			if err := s.AddFilter(Filter{From: "foo", To: "bar"}); err != nil {
				t.Fatalf("seed AddFilter() error = %v", err)
			}

			err := s.AddFilter(tt.add)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddFilter(%+v) error = %v, want %v", tt.add, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if got := s.Snapshot().Filters; len(got) != 1 {
					t.Errorf("filters after rejection = %+v, want unchanged", got)
				}
			}
		})
	}
}

func TestRemoveFilters(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddFilter(Filter{From: "foo", To: "bar"}); err != nil {
		t.Fatalf("AddFilter() error = %v", err)
	}

	if n, err := s.RemoveFilters("Foo"); err != nil || n != 0 {
		t.Errorf("RemoveFilters(%q) = %d, %v, want 0, nil (match is exact)", "Foo", n, err)
	}
	if n, err := s.RemoveFilters("foo"); err != nil || n != 1 {
		t.Errorf("RemoveFilters(%q) = %d, %v, want 1, nil", "foo", n, err)
	}
	if got := s.Snapshot().Filters; len(got) != 0 {
		t.Errorf("filters after remove = %+v, want empty", got)
	}
}

func TestFindFilter(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddFilter(Filter{From: "foo", To: "bar"}); err != nil {
		t.Fatalf("AddFilter() error = %v", err)
	}

	if f, ok := s.FindFilter("foo"); !ok || f.To != "bar" {
		t.Errorf("FindFilter(foo) = %+v, %v, want {foo bar}, true", f, ok)
	}
	if _, ok := s.FindFilter("missing"); ok {
		t.Error("FindFilter(missing) = true, want false")
	}
}

func TestSettingsPersist(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if err := s.SetFilterWords(false); err != nil {
		t.Fatalf("SetFilterWords() error = %v", err)
	}
	if err := s.SetAddSignature(true); err != nil {
		t.Fatalf("SetAddSignature() error = %v", err)
	}
	if err := s.SetSignature("new sig"); err != nil {
		t.Fatalf("SetSignature() error = %v", err)
	}

	reopened, err := Open(s.Path(), testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	cfg := reopened.Snapshot()
	if cfg.BotEnabled {
		t.Error("BotEnabled = true, want false")
	}
	if cfg.FilterWords {
		t.Error("FilterWords = true, want false")
	}
	if !cfg.AddSignature {
		t.Error("AddSignature = false, want true")
	}
	if cfg.Signature != "new sig" {
		t.Errorf("Signature = %q, want %q", cfg.Signature, "new sig")
	}
}

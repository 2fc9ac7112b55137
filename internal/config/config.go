// Package config defines the cloner configuration and its write-through
// JSON store. Every mutation is persisted before it becomes visible, so
// the file on disk always matches what the running process uses.
package config

import (
	"encoding/json"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// Rule forwards everything arriving in Source to Target. It is encoded
// on the wire as a two-element array to keep the file terse.
type Rule struct {
	// Source is the canonical id of the watched entity.
	Source int64
	// Target is the canonical id of the destination entity.
	Target int64
}

// MarshalJSON encodes the rule as [source, target].
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Source, r.Target})
}

// UnmarshalJSON decodes a [source, target] pair. Extra elements are
// ignored.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(err, "entity pair")
	}
	if len(pair) < 2 {
		return errors.New("entity pair needs two elements")
	}
	r.Source, r.Target = pair[0], pair[1]
	return nil
}

// Filter rewrites every occurrence of From to To in forwarded text.
// Matching is case insensitive and literal.
type Filter struct {
	From string
	To   string
}

// MarshalJSON encodes the filter as ["from", "to"].
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.From, f.To})
}

// UnmarshalJSON decodes a ["from", "to"] pair. Extra elements are
// ignored.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(err, "filter pair")
	}
	if len(pair) < 2 {
		return errors.New("filter pair needs two elements")
	}
	f.From, f.To = pair[0], pair[1]
	return nil
}

// Config holds everything the cloner needs to run. It round-trips
// through JSON with stable key order.
type Config struct {
	// APIID is the Telegram application id.
	APIID int `json:"api_id"`

	// APIHash is the Telegram application hash.
	APIHash string `json:"api_hash"`

	// BotEnabled gates the whole event stream. When false every inbound
	// message is dropped; re-enable by editing the file.
	BotEnabled bool `json:"bot_enabled"`

	// Sudo lists user ids allowed to control the bot besides the
	// account owner.
	Sudo []int64 `json:"sudo"`

	// FilterWords applies the filter list to forwarded text when true.
	FilterWords bool `json:"filter_words"`

	// AddSignature appends Signature to forwarded text when true.
	AddSignature bool `json:"add_signature"`

	// Signature is the text appended to forwarded messages.
	Signature string `json:"signature"`

	// Entities is the forwarding rule list.
	Entities []Rule `json:"entities"`

	// Filters is the word replacement list.
	Filters []Filter `json:"filters"`
}

// Default returns the initial configuration. Credentials are seeded
// from the TG_API_ID and TG_API_HASH environment variables when set.
func Default() Config {
	cfg := Config{
		BotEnabled:  true,
		Sudo:        []int64{},
		FilterWords: true,
		Entities:    []Rule{},
		Filters:     []Filter{},
	}
	if v, err := strconv.Atoi(os.Getenv("TG_API_ID")); err == nil {
		cfg.APIID = v
	}
	cfg.APIHash = os.Getenv("TG_API_HASH")
	return cfg
}

// flexInt decodes from a JSON number or a numeric string; the file is
// written by several tools and both forms occur in the wild.
type flexInt int

// UnmarshalJSON accepts 12345 and "12345" alike.
func (v *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Wrap(err, "numeric value")
	}
	*v = flexInt(n)
	return nil
}

// UnmarshalJSON decodes the configuration. The boolean toggles default
// to true when absent so a hand-trimmed file keeps forwarding.
func (c *Config) UnmarshalJSON(data []byte) error {
	type raw struct {
		APIID        flexInt  `json:"api_id"`
		APIHash      string   `json:"api_hash"`
		BotEnabled   *bool    `json:"bot_enabled"`
		Sudo         []int64  `json:"sudo"`
		FilterWords  *bool    `json:"filter_words"`
		AddSignature bool     `json:"add_signature"`
		Signature    string   `json:"signature"`
		Entities     []Rule   `json:"entities"`
		Filters      []Filter `json:"filters"`
	}
	var in raw
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.APIID = int(in.APIID)
	c.APIHash = in.APIHash
	c.BotEnabled = in.BotEnabled == nil || *in.BotEnabled
	c.Sudo = in.Sudo
	c.FilterWords = in.FilterWords == nil || *in.FilterWords
	c.AddSignature = in.AddSignature
	c.Signature = in.Signature
	c.Entities = in.Entities
	c.Filters = in.Filters
	return nil
}

// setDefaults fills slice fields so the encoded file carries [] instead
// of null.
func (c *Config) setDefaults() {
	if c.Sudo == nil {
		c.Sudo = []int64{}
	}
	if c.Entities == nil {
		c.Entities = []Rule{}
	}
	if c.Filters == nil {
		c.Filters = []Filter{}
	}
}

// validate checks required fields.
func (c *Config) validate() error {
	if c.APIID == 0 {
		return ErrMissingAPIID
	}
	if c.APIHash == "" {
		return ErrMissingAPIHash
	}
	return nil
}

// clone returns a deep copy so callers can mutate freely.
func (c Config) clone() Config {
	out := c
	out.Sudo = slices.Clone(c.Sudo)
	out.Entities = slices.Clone(c.Entities)
	out.Filters = slices.Clone(c.Filters)
	return out
}

// Package dlbot implements the downloader bot: an authorized-users-only
// bot account that saves forwarded media to per-kind directories,
// fetches YouTube links, and keeps a registry of completed downloads.
package dlbot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// DefaultMaxParallel bounds the download worker pool when the config
// does not.
const DefaultMaxParallel = 4

var (
	// ErrMissingAPIID is returned when the config has no api_id.
	ErrMissingAPIID = errors.New("dlbot: missing telegram.api_id")

	// ErrMissingAPIHash is returned when the config has no api_hash.
	ErrMissingAPIHash = errors.New("dlbot: missing telegram.api_hash")

	// ErrMissingBotToken is returned when the config has no bot_token.
	ErrMissingBotToken = errors.New("dlbot: missing telegram.bot_token")
)

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

// idList decodes a JSON array whose elements are numbers or numeric
// strings; both forms occur in hand-edited files.
type idList []int64

// UnmarshalJSON accepts [1, "2"] style mixes.
func (l *idList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "id list")
	}
	out := make([]int64, 0, len(raw))
	for _, el := range raw {
		s := strings.Trim(string(el), `"`)
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "id %s", el)
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

// TelegramSection holds the bot account credentials and the users
// allowed to talk to it.
type TelegramSection struct {
	APIID             int
	APIHash           string
	BotToken          string
	AuthorizedUserIDs []int64
}

// UnmarshalJSON decodes the section, tolerating numeric strings for
// api_id and the user ids.
func (t *TelegramSection) UnmarshalJSON(data []byte) error {
	type raw struct {
		APIID             flexInt `json:"api_id"`
		APIHash           string  `json:"api_hash"`
		BotToken          string  `json:"bot_token"`
		AuthorizedUserIDs idList  `json:"authorized_user_ids"`
	}
	var in raw
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.APIID = int(in.APIID)
	t.APIHash = in.APIHash
	t.BotToken = in.BotToken
	t.AuthorizedUserIDs = in.AuthorizedUserIDs
	return nil
}

// DownloadsSection holds the download root. Per-kind subdirectories are
// derived from it.
type DownloadsSection struct {
	BasePath string `json:"base_path"`
}

// Dir returns the destination directory for a download kind.
func (d DownloadsSection) Dir(kind Kind) string {
	return filepath.Join(d.BasePath, string(kind))
}

// FeaturesSection holds behavior toggles.
type FeaturesSection struct {
	MaxParallel int `json:"max_parallel"`
}

// Config is the sectioned bot configuration file.
type Config struct {
	Telegram  TelegramSection  `json:"telegram"`
	Downloads DownloadsSection `json:"downloads"`
	Features  FeaturesSection  `json:"features"`
}

// LoadConfig reads and validates the configuration. The download root
// can be overridden with the TG_DOWNLOAD_PATH environment variable.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	if v := os.Getenv("TG_DOWNLOAD_PATH"); v != "" {
		cfg.Downloads.BasePath = v
	}
	if cfg.Downloads.BasePath == "" {
		cfg.Downloads.BasePath = "./downloads"
	}
	if cfg.Features.MaxParallel <= 0 {
		cfg.Features.MaxParallel = DefaultMaxParallel
	}

	switch {
	case cfg.Telegram.APIID == 0:
		return Config{}, ErrMissingAPIID
	case cfg.Telegram.APIHash == "":
		return Config{}, ErrMissingAPIHash
	case cfg.Telegram.BotToken == "":
		return Config{}, ErrMissingBotToken
	}
	return cfg, nil
}

// Authorized reports whether the user may use the bot. An empty list
// authorizes nobody.
func (c Config) Authorized(userID int64) bool {
	for _, id := range c.Telegram.AuthorizedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

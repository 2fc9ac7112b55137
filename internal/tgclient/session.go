package tgclient

import (
	"context"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
)

// newSessionStorage picks the session backend. A Telethon string
// session is imported into memory so the exported credential stays the
// single source of truth; otherwise auth data lives in a session file
// under the state dir.
func newSessionStorage(opts Options) (telegram.SessionStorage, error) {
	if opts.StringSession != "" {
		data, err := session.TelethonSession(opts.StringSession)
		if err != nil {
			return nil, errors.Wrap(err, "parse session string")
		}
		var mem session.StorageMemory
		loader := session.Loader{Storage: &mem}
		if err := loader.Save(context.Background(), data); err != nil {
			return nil, errors.Wrap(err, "import session")
		}
		return &mem, nil
	}
	return &session.FileStorage{
		Path: filepath.Join(opts.StateDir, "session.json"),
	}, nil
}

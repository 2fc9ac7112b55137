package dlbot

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

// Download is one completed download.
type Download struct {
	ID        int64
	Name      string
	Path      string
	Size      int64
	Kind      Kind
	Chat      int64
	Message   int
	CreatedAt time.Time
}

// Registry is the sqlite record of completed downloads.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens or creates the registry database at path.
func OpenRegistry(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create registry directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			path       TEXT NOT NULL,
			size       INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			chat       INTEGER NOT NULL,
			message    INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create downloads table")
	}
	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error { return r.db.Close() }

// Add records a completed download.
func (r *Registry) Add(ctx context.Context, d Download) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (name, path, size, kind, chat, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Name, d.Path, d.Size, string(d.Kind), d.Chat, d.Message, d.CreatedAt.Unix())
	return errors.Wrap(err, "insert download")
}

// Count returns how many downloads are recorded.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count downloads")
	}
	return n, nil
}

// Recent returns the latest downloads, newest first.
func (r *Registry) Recent(ctx context.Context, limit int) ([]Download, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, path, size, kind, chat, message, created_at
		FROM downloads ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query downloads")
	}
	defer func() { _ = rows.Close() }()

	var out []Download
	for rows.Next() {
		var (
			d       Download
			kind    string
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Size, &kind, &d.Chat, &d.Message, &created); err != nil {
			return nil, errors.Wrap(err, "scan download")
		}
		d.Kind = Kind(kind)
		d.CreatedAt = time.Unix(created, 0)
		out = append(out, d)
	}
	return out, rows.Err()
}

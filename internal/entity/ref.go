// Package entity models user-written references to Telegram chats,
// channels, and users, and the contract for resolving them to canonical
// numeric ids.
package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates how a Ref identifies an entity.
type Kind int

const (
	// Numeric is a canonical numeric id (negative for some chats).
	Numeric Kind = iota

	// Alias is a public username, stored without the @ prefix.
	Alias

	// Self is the authenticated account itself ("me").
	Self
)

// Ref is an entity reference as written by a user: a numeric id, a
// @username alias, or the account itself.
type Ref struct {
	Kind Kind
	ID   int64  // set when Kind is Numeric
	Name string // set when Kind is Alias
}

// Parse interprets an identifier token. A leading @ is stripped and the
// token is lowercased before matching, so "@MyChannel" and "mychannel"
// parse identically.
func Parse(s string) Ref {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	if s == "me" || s == "self" {
		return Ref{Kind: Self}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Ref{Kind: Numeric, ID: id}
	}
	return Ref{Kind: Alias, Name: s}
}

// String renders the reference in user-facing form.
func (r Ref) String() string {
	switch r.Kind {
	case Alias:
		return "@" + r.Name
	case Self:
		return "me"
	default:
		return strconv.FormatInt(r.ID, 10)
	}
}

// Info is a resolved entity: its canonical id and a display title.
type Info struct {
	ID    int64
	Title string
}

// FallbackTitle is the display title for an entity with no known name.
func FallbackTitle(id int64) string {
	return fmt.Sprintf("ID:%d", id)
}

// Resolver resolves references to canonical entities. Implementations
// consult a peer cache for numeric ids and the network for aliases.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (Info, error)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the text form of post timestamps, matching SQLite's CURRENT_TIMESTAMP.
const TimeLayout = "2006-01-02 15:04:05"

// Status is the outcome recorded for a post. The values are the literals
// persisted in the posts.status column.
type Status string

const (
	// StatusSaved marks a post whose every media item was fetched.
	StatusSaved Status = "salvo"
	// StatusFailed marks a post with a missing item or no media at all.
	StatusFailed Status = "falha"
	// StatusRemoved is a soft marker set by maintenance flows only.
	StatusRemoved Status = "removido"
)

// Valid reports whether s is one of the persisted status literals.
func (s Status) Valid() bool {
	switch s {
	case StatusSaved, StatusFailed, StatusRemoved:
		return true
	}
	return false
}

// Name returns the english name of the status.
func (s Status) Name() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusFailed:
		return "failed"
	case StatusRemoved:
		return "removed"
	}
	return string(s)
}

// ParseStatus accepts either the english name or the persisted literal.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saved", string(StatusSaved):
		return StatusSaved, nil
	case "failed", string(StatusFailed):
		return StatusFailed, nil
	case "removed", string(StatusRemoved):
		return StatusRemoved, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Post represents a single row from the posts table.
type Post struct {
	ID        int64
	Profile   string
	ShortID   string
	SourceURL string
	// Caption is nil when no caption was recorded.
	Caption   *string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostInput carries the caller-supplied fields of an upsert.
type PostInput struct {
	Profile   string
	ShortID   string
	SourceURL string
	Caption   *string
	Status    Status
}

// PostFilter selects posts. Unset fields do not constrain the result; set
// fields are combined with AND.
type PostFilter struct {
	Profile         string
	Status          Status
	CaptionContains string
}

// Matches reports whether p satisfies every set field of f. The caption test
// folds ASCII letters only, the same way SQLite's LIKE does.
func (f PostFilter) Matches(p Post) bool {
	if f.Profile != "" && p.Profile != f.Profile {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.CaptionContains != "" {
		if p.Caption == nil || !strings.Contains(foldASCII(*p.Caption), foldASCII(f.CaptionContains)) {
			return false
		}
	}
	return true
}

func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Writer is the set of mutations performed while ingesting a post.
type Writer interface {
	// UpsertPost inserts a post or updates caption, status and update time of the existing one.
	UpsertPost(ctx context.Context, in PostInput) (int64, error)
	// InsertTag normalizes a tag, inserts it if absent and returns its id.
	InsertTag(ctx context.Context, raw string) (int64, error)
	// LinkPostTag associates a post with a tag. Linking twice is a no-op.
	LinkPostTag(ctx context.Context, postID, tagID int64) error
}

// Reader is the set of read-only queries.
type Reader interface {
	// QueryPosts returns posts matching the filter, newest first.
	QueryPosts(ctx context.Context, filter PostFilter) ([]Post, error)
	// QueryPostsByTag returns posts linked to a tag, newest first.
	QueryPostsByTag(ctx context.Context, tag string) ([]Post, error)
	// GetPost returns a single post, or nil if it does not exist.
	GetPost(ctx context.Context, profile, shortID string) (*Post, error)
	// TagsForPost returns the tags linked to a post in lexicographic order.
	TagsForPost(ctx context.Context, postID int64) ([]string, error)
}

// Storer defines the interface for database operations.
// This allows for different database backends to be used with the client.
type Storer interface {
	Writer
	Reader
	// InTx runs fn inside one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(w Writer) error) error
	// SetStatus overwrites the status of a post.
	SetStatus(ctx context.Context, postID int64, status Status) error
	// DeletePost deletes a post and its tag links.
	DeletePost(ctx context.Context, postID int64) error
	// DeleteTag deletes a tag and its post links.
	DeleteTag(ctx context.Context, tagID int64) error
	// Close closes the database connection.
	Close() error
}

// ErrNotFound is returned by maintenance operations addressing a missing row.
var ErrNotFound = errors.New("not found")

package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	_ "github.com/mattn/go-sqlite3"
	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
)

//go:embed queries/*.sql
//go:embed queries/*.sql.tpl
var queryFS embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a SQLite implementation of the storage.Storer interface.
type DB struct {
	Conn *sql.DB // The raw database connection, exposed for extensibility.
	now  func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock replaces the clock used for criado_em and atualizado_em.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// New creates a new SQLite database connection and ensures the schema is up to date.
// It returns a concrete *DB type to allow for extension.
func New(path string, opts ...Option) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to create database directory: %w", err))
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to open database: %w", err))
	}
	// SQLite has a single writer; one connection serialises every statement.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, storeErr("open", fmt.Errorf("failed to connect to database: %w", err))
	}

	instance := &DB{Conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(instance)
	}
	if err := instance.createSchema(); err != nil {
		_ = conn.Close()
		return nil, storeErr("open", fmt.Errorf("failed to create database schema: %w", err))
	}

	return instance, nil
}

func storeErr(op string, err error) error {
	return &instagrab.StoreError{Op: op, Err: err}
}

// getQuery reads a raw SQL query from the embedded filesystem.
func getQuery(name string) (string, error) {
	b, err := queryFS.ReadFile("queries/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded query %s: %w", name, err)
	}
	return string(b), nil
}

// getParsedQuery parses and executes a SQL template from the embedded filesystem.
func getParsedQuery(templateName string, data any) (string, error) {
	t, err := template.ParseFS(queryFS, "queries/"+templateName)
	if err != nil {
		return "", fmt.Errorf("failed to parse embedded query template %s: %w", templateName, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute embedded query template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// createSchema creates the necessary tables in the SQLite database if they don't exist.
func (db *DB) createSchema() error {
	query, err := getQuery("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Conn.Exec(query)
	return err
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(storage.TimeLayout)
}

// UpsertPost inserts a post or, when (profile, shortcode) already exists,
// updates its caption, status and update time. criado_em is never touched.
func (db *DB) UpsertPost(ctx context.Context, in storage.PostInput) (int64, error) {
	return upsertPost(ctx, db.Conn, db.timestamp(), in)
}

// InsertTag normalizes raw and returns the id of the matching tag, inserting it when absent.
func (db *DB) InsertTag(ctx context.Context, raw string) (int64, error) {
	return insertTag(ctx, db.Conn, raw)
}

// LinkPostTag associates a post with a tag. Existing links are left alone.
func (db *DB) LinkPostTag(ctx context.Context, postID, tagID int64) error {
	return linkPostTag(ctx, db.Conn, postID, tagID)
}

// InTx runs fn in a single transaction. The transaction is rolled back when fn
// returns an error or panics.
func (db *DB) InTx(ctx context.Context, fn func(w storage.Writer) error) (err error) {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()
	if err = fn(&txWriter{tx: tx, stamp: db.timestamp()}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// txWriter performs writes inside an open transaction.
type txWriter struct {
	tx    *sql.Tx
	stamp string
}

func (w *txWriter) UpsertPost(ctx context.Context, in storage.PostInput) (int64, error) {
	return upsertPost(ctx, w.tx, w.stamp, in)
}

func (w *txWriter) InsertTag(ctx context.Context, raw string) (int64, error) {
	return insertTag(ctx, w.tx, raw)
}

func (w *txWriter) LinkPostTag(ctx context.Context, postID, tagID int64) error {
	return linkPostTag(ctx, w.tx, postID, tagID)
}

func upsertPost(ctx context.Context, q querier, stamp string, in storage.PostInput) (int64, error) {
	if strings.TrimSpace(in.Profile) == "" || strings.TrimSpace(in.ShortID) == "" {
		return 0, storeErr("upsert post", errors.New("profile and shortcode are required"))
	}
	if !in.Status.Valid() {
		return 0, storeErr("upsert post", fmt.Errorf("invalid status %q", in.Status))
	}
	query, err := getQuery("upsert_post.sql")
	if err != nil {
		return 0, storeErr("upsert post", err)
	}
	var caption sql.NullString
	if in.Caption != nil {
		caption = sql.NullString{String: *in.Caption, Valid: true}
	}
	var id int64
	err = q.QueryRowContext(ctx, query, in.Profile, in.ShortID, in.SourceURL, caption, string(in.Status), stamp, stamp).Scan(&id)
	if err != nil {
		return 0, storeErr("upsert post", fmt.Errorf("failed to upsert post %s/%s: %w", in.Profile, in.ShortID, err))
	}
	return id, nil
}

func insertTag(ctx context.Context, q querier, raw string) (int64, error) {
	tag := instagrab.NormalizeTag(raw)
	if tag == "" {
		return 0, storeErr("insert tag", fmt.Errorf("tag %q is empty after normalization", raw))
	}
	query, err := getQuery("insert_tag.sql")
	if err != nil {
		return 0, storeErr("insert tag", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, query, tag).Scan(&id); err != nil {
		return 0, storeErr("insert tag", fmt.Errorf("failed to insert tag %s: %w", tag, err))
	}
	return id, nil
}

func linkPostTag(ctx context.Context, q querier, postID, tagID int64) error {
	query, err := getQuery("link_post_tag.sql")
	if err != nil {
		return storeErr("link tag", err)
	}
	if _, err := q.ExecContext(ctx, query, postID, tagID); err != nil {
		return storeErr("link tag", fmt.Errorf("failed to link post %d to tag %d: %w", postID, tagID, err))
	}
	return nil
}

// QueryPosts returns the posts matching every set field of filter, newest first.
func (db *DB) QueryPosts(ctx context.Context, filter storage.PostFilter) ([]storage.Post, error) {
	query, err := getParsedQuery("query_posts.sql.tpl", filter)
	if err != nil {
		return nil, storeErr("query posts", err)
	}
	var args []any
	if filter.Profile != "" {
		args = append(args, filter.Profile)
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
	}
	if filter.CaptionContains != "" {
		args = append(args, "%"+escapeLike(filter.CaptionContains)+"%")
	}
	return db.queryPosts(ctx, "query posts", query, args...)
}

// QueryPostsByTag returns the posts linked to tag, newest first.
func (db *DB) QueryPostsByTag(ctx context.Context, tag string) ([]storage.Post, error) {
	query, err := getQuery("query_posts_by_tag.sql")
	if err != nil {
		return nil, storeErr("query posts by tag", err)
	}
	return db.queryPosts(ctx, "query posts by tag", query, instagrab.NormalizeTag(tag))
}

// GetPost returns the post identified by profile and shortcode, or nil when absent.
func (db *DB) GetPost(ctx context.Context, profile, shortID string) (*storage.Post, error) {
	query, err := getQuery("get_post.sql")
	if err != nil {
		return nil, storeErr("get post", err)
	}
	p, err := scanPost(db.Conn.QueryRowContext(ctx, query, profile, shortID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get post", fmt.Errorf("failed to get post %s/%s: %w", profile, shortID, err))
	}
	return &p, nil
}

// TagsForPost returns the tags linked to a post, sorted. The result is never nil.
func (db *DB) TagsForPost(ctx context.Context, postID int64) ([]string, error) {
	query, err := getQuery("tags_for_post.sql")
	if err != nil {
		return nil, storeErr("tags for post", err)
	}
	rows, err := db.Conn.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, storeErr("tags for post", fmt.Errorf("failed to query tags for post %d: %w", postID, err))
	}
	defer func() {
		_ = rows.Close()
	}()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, storeErr("tags for post", fmt.Errorf("failed to scan tag row: %w", err))
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("tags for post", fmt.Errorf("error during row iteration for post %d: %w", postID, err))
	}
	return tags, nil
}

// SetStatus overwrites the status of a post and bumps its update time.
func (db *DB) SetStatus(ctx context.Context, postID int64, status storage.Status) error {
	if !status.Valid() {
		return storeErr("set status", fmt.Errorf("invalid status %q", status))
	}
	query, err := getQuery("set_status.sql")
	if err != nil {
		return storeErr("set status", err)
	}
	return db.execOne(ctx, "set status", query, string(status), db.timestamp(), postID)
}

// DeletePost deletes a post record; its tag links go with it.
func (db *DB) DeletePost(ctx context.Context, postID int64) error {
	query, err := getQuery("delete_post.sql")
	if err != nil {
		return storeErr("delete post", err)
	}
	return db.execOne(ctx, "delete post", query, postID)
}

// DeleteTag deletes a tag; its post links go with it.
func (db *DB) DeleteTag(ctx context.Context, tagID int64) error {
	query, err := getQuery("delete_tag.sql")
	if err != nil {
		return storeErr("delete tag", err)
	}
	return db.execOne(ctx, "delete tag", query, tagID)
}

// execOne runs a statement that must affect exactly one row.
func (db *DB) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := db.Conn.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return storeErr(op, storage.ErrNotFound)
	}
	return nil
}

// Close checkpoints the write-ahead log and closes the database connection.
func (db *DB) Close() error {
	if _, err := db.Conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		_ = db.Conn.Close()
		return storeErr("close", fmt.Errorf("failed to checkpoint WAL: %w", err))
	}
	return db.Conn.Close()
}

func (db *DB) queryPosts(ctx context.Context, op, query string, args ...any) ([]storage.Post, error) {
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	posts := []storage.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, storeErr(op, fmt.Errorf("failed to scan post row: %w", err))
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, fmt.Errorf("error during row iteration: %w", err))
	}
	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (storage.Post, error) {
	var (
		p                storage.Post
		caption          sql.NullString
		status           string
		created, updated any
	)
	if err := row.Scan(&p.ID, &p.Profile, &p.ShortID, &p.SourceURL, &caption, &status, &created, &updated); err != nil {
		return p, err
	}
	if caption.Valid {
		c := caption.String
		p.Caption = &c
	}
	p.Status = storage.Status(status)
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, err
	}
	return p, nil
}

// parseTime accepts the driver's decoded time or the raw column text.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.ParseInLocation(storage.TimeLayout, t, time.UTC)
	case []byte:
		return time.ParseInLocation(storage.TimeLayout, string(t), time.UTC)
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

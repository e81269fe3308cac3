package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/config"
	"github.com/perpetuallyhorni/instagrab/pkg/ratelimiter"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
)

// Client is the main entry point for ingesting posts.
type Client struct {
	cfg      *config.Config
	db       storage.Storer
	resolver instagrab.Resolver
	fetcher  instagrab.Fetcher
	pacer    instagrab.Pacer
	logger   *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithPacer replaces the fixed-delay pacer derived from the configuration.
func WithPacer(p instagrab.Pacer) Option {
	return func(c *Client) {
		c.pacer = p
	}
}

// New creates a new Client.
func New(cfg *config.Config, db storage.Storer, resolver instagrab.Resolver, fetcher instagrab.Fetcher, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	c := &Client{
		cfg:      cfg,
		db:       db,
		resolver: resolver,
		fetcher:  fetcher,
		pacer:    ratelimiter.New(cfg.DelayDuration()),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State is the position of a URL in the ingestion lifecycle.
type State int

const (
	// StateStart is the state of a URL that has not been looked at yet.
	StateStart State = iota
	// StateResolved means the short identifier was extracted from the URL.
	StateResolved
	// StateMetadataFetched means the resolver returned the owner, caption and media.
	StateMetadataFetched
	// StateMediaFetched means every media item was attempted.
	StateMediaFetched
	// StatePostCommitted means the post row was written inside the open transaction.
	StatePostCommitted
	// StateCommitted means the post and its hashtags are stored.
	StateCommitted
	// StateSkipped means the URL was abandoned; Outcome.Err says why.
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateResolved:
		return "resolved"
	case StateMetadataFetched:
		return "metadata_fetched"
	case StateMediaFetched:
		return "media_fetched"
	case StatePostCommitted:
		return "post_committed"
	case StateCommitted:
		return "committed"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome reports what happened to a single URL.
type Outcome struct {
	URL     string
	ShortID string
	Profile string
	Caption string
	Dir     string
	// State is StateCommitted or StateSkipped once ingestion finished.
	State     State
	Status    storage.Status
	PostID    int64
	Attempted int
	Saved     []string
	Tags      []string
	// Err is why the URL was skipped; nil for committed posts.
	Err error
}

// Summary aggregates the outcomes of a batch.
type Summary struct {
	RunID     string
	Outcomes  []Outcome
	Committed int
	Skipped   int
	Saved     int
	Failed    int
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.State != StateCommitted {
		s.Skipped++
		return
	}
	s.Committed++
	switch o.Status {
	case storage.StatusSaved:
		s.Saved++
	case storage.StatusFailed:
		s.Failed++
	}
}

// ProgressCallback is invoked after each URL of a batch has been handled.
type ProgressCallback func(current, total int, outcome Outcome)

// noOpProgress is a default empty progress callback.
func noOpProgress(int, int, Outcome) {}

// DeriveStatus returns saved only when at least one item was attempted and
// every attempted item was saved.
func DeriveStatus(result instagrab.FetchResult) storage.Status {
	if result.Complete() {
		return storage.StatusSaved
	}
	return storage.StatusFailed
}

// Run ingests urls one after another. A URL that fails is reported in the
// summary and never stops the batch; cancellation stops it between URLs or
// media items and is returned with the partial summary.
func (c *Client) Run(ctx context.Context, urls []string, progressCb ProgressCallback) (Summary, error) {
	if progressCb == nil {
		progressCb = noOpProgress
	}
	summary := Summary{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("run started", zap.Int("urls", len(urls)))

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled", zap.Int("processed", i), zap.Int("total", len(urls)))
			return summary, err
		}
		outcome := c.ingest(ctx, logger, u)
		summary.add(outcome)
		progressCb(i+1, len(urls), outcome)
		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled", zap.Int("processed", i+1), zap.Int("total", len(urls)))
			return summary, err
		}
	}

	logger.Info("run finished",
		zap.Int("committed", summary.Committed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("saved", summary.Saved),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// IngestURL runs a single URL through resolution, download and commit.
func (c *Client) IngestURL(ctx context.Context, rawURL string) Outcome {
	return c.ingest(ctx, c.logger, rawURL)
}

func (c *Client) ingest(ctx context.Context, logger *zap.Logger, rawURL string) Outcome {
	out := Outcome{URL: rawURL, State: StateStart}
	logger = logger.With(zap.String("url", rawURL))
	skip := func(err error) Outcome {
		out.State = StateSkipped
		out.Err = err
		logger.Error("post skipped", zap.Error(err))
		return out
	}

	shortID, err := instagrab.ResolveShortID(rawURL)
	if err != nil {
		return skip(err)
	}
	out.ShortID = shortID
	out.State = StateResolved
	logger = logger.With(zap.String("shortcode", shortID))

	meta, err := c.resolver.Resolve(ctx, shortID)
	if err != nil {
		var rerr *instagrab.ResolverError
		if !errors.As(err, &rerr) {
			err = &instagrab.ResolverError{ShortID: shortID, Err: err}
		}
		return skip(err)
	}
	if err := instagrab.CheckPathSegment(meta.Profile); err != nil {
		return skip(&instagrab.ResolverError{ShortID: shortID, Err: fmt.Errorf("unusable profile: %w", err)})
	}
	out.Profile = meta.Profile
	out.Caption = meta.Caption
	out.Dir = filepath.Join(c.cfg.OutputDir, meta.Profile, shortID)
	out.State = StateMetadataFetched
	logger.Info("post resolved",
		zap.String("profile", meta.Profile),
		zap.Int("media", len(meta.Media)),
		zap.Bool("carousel", meta.IsCarousel()),
		zap.String("dir", out.Dir))

	if c.cfg.SaveCaption {
		if err := c.saveCaption(out.Dir, shortID, meta.Caption, logger); err != nil {
			logger.Error("failed to save caption", zap.Error(err))
		}
	}

	result, err := instagrab.FetchAll(ctx, meta.Media, instagrab.DefaultNamer(out.Dir, shortID), c.fetcher, c.pacer, logger)
	out.Attempted = result.Attempted
	out.Saved = result.Saved
	if err != nil {
		return skip(err)
	}
	out.State = StateMediaFetched
	out.Status = DeriveStatus(result)
	out.Tags = instagrab.ExtractHashtags(meta.Caption)

	caption := meta.Caption
	err = c.db.InTx(ctx, func(w storage.Writer) error {
		postID, err := w.UpsertPost(ctx, storage.PostInput{
			Profile:   meta.Profile,
			ShortID:   shortID,
			SourceURL: rawURL,
			Caption:   &caption,
			Status:    out.Status,
		})
		if err != nil {
			return err
		}
		out.PostID = postID
		out.State = StatePostCommitted
		for _, tag := range out.Tags {
			tagID, err := w.InsertTag(ctx, tag)
			if err != nil {
				return err
			}
			if err := w.LinkPostTag(ctx, postID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var serr *instagrab.StoreError
		if !errors.As(err, &serr) {
			err = &instagrab.StoreError{Op: "commit post", Err: err}
		}
		out.PostID = 0
		return skip(err)
	}
	out.State = StateCommitted

	logger.Info("post committed",
		zap.Int64("post_id", out.PostID),
		zap.String("status", out.Status.Name()),
		zap.Int("saved", len(out.Saved)),
		zap.Int("attempted", out.Attempted),
		zap.Strings("hashtags", out.Tags))
	return out
}

// saveCaption writes the caption to <dir>/<shortID>.txt.
func (c *Client) saveCaption(dir, shortID, caption string, logger *zap.Logger) error {
	// #nosec G301
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create post directory %s: %w", dir, err)
	}
	txtPath := filepath.Join(dir, shortID+".txt")
	logger.Debug("saving caption", zap.String("path", txtPath))
	// #nosec G306
	return os.WriteFile(txtPath, []byte(caption), 0644)
}

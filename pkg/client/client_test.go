package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/config"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
	"github.com/perpetuallyhorni/instagrab/pkg/storage/sqlite"
)

type fakeResolver struct {
	posts map[string]*instagrab.PostMeta
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, shortID string) (*instagrab.PostMeta, error) {
	f.calls = append(f.calls, shortID)
	meta, ok := f.posts[shortID]
	if !ok {
		return nil, errors.New("post not found")
	}
	return meta, nil
}

// fileFetcher writes the URL into dest, failing for URLs listed in fail.
type fileFetcher struct {
	fail map[string]bool
}

func (f *fileFetcher) Fetch(_ context.Context, url, dest string) error {
	if f.fail[url] {
		return errors.New("connection reset")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(url), 0644)
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }

type testEnv struct {
	client   *Client
	db       *sqlite.DB
	resolver *fakeResolver
	fetcher  *fileFetcher
	outDir   string
}

func newTestEnv(t *testing.T, store func(*sqlite.DB) storage.Storer, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "instagrab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "downloads")
	cfg.Delay = 0

	env := &testEnv{
		db:       db,
		resolver: &fakeResolver{posts: map[string]*instagrab.PostMeta{}},
		fetcher:  &fileFetcher{fail: map[string]bool{}},
		outDir:   cfg.OutputDir,
	}
	var s storage.Storer = db
	if store != nil {
		s = store(db)
	}
	opts = append([]Option{WithPacer(noPacer{})}, opts...)
	env.client, err = New(cfg, s, env.resolver, env.fetcher, zap.NewNop(), opts...)
	require.NoError(t, err)
	return env
}

func image(url string) instagrab.MediaItem {
	return instagrab.MediaItem{Kind: instagrab.MediaImage, URL: url}
}

func video(url string) instagrab.MediaItem {
	return instagrab.MediaItem{Kind: instagrab.MediaVideo, URL: url}
}

func TestNewValidatesDependencies(t *testing.T) {
	cfg := config.Default()
	db := &sqlite.DB{}
	r := &fakeResolver{}
	f := &fileFetcher{}
	logger := zap.NewNop()

	_, err := New(nil, db, r, f, logger)
	assert.Error(t, err)
	_, err = New(cfg, nil, r, f, logger)
	assert.Error(t, err)
	_, err = New(cfg, db, nil, f, logger)
	assert.Error(t, err)
	_, err = New(cfg, db, r, nil, logger)
	assert.Error(t, err)
	_, err = New(cfg, db, r, f, nil)
	assert.Error(t, err)
	_, err = New(cfg, db, r, f, logger)
	assert.NoError(t, err)
}

func TestIngestURLEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.resolver.posts["ABC123"] = &instagrab.PostMeta{
		Profile: "alice",
		Caption: "nice #Sunset #sunset",
		Media:   []instagrab.MediaItem{image("https://cdn/1.jpg")},
	}

	out := env.client.IngestURL(ctx, "https://site/p/ABC123/")
	require.NoError(t, out.Err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, storage.StatusSaved, out.Status)
	assert.Equal(t, []string{"sunset"}, out.Tags)

	postDir := filepath.Join(env.outDir, "alice", "ABC123")
	assert.Equal(t, []string{filepath.Join(postDir, "ABC123_01.jpg")}, out.Saved)
	caption, err := os.ReadFile(filepath.Join(postDir, "ABC123.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nice #Sunset #sunset", string(caption))

	p, err := env.db.GetPost(ctx, "alice", "ABC123")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, out.PostID, p.ID)
	assert.Equal(t, storage.StatusSaved, p.Status)
	assert.Equal(t, "https://site/p/ABC123/", p.SourceURL)
	require.NotNil(t, p.Caption)
	assert.Equal(t, "nice #Sunset #sunset", *p.Caption)

	tags, err := env.db.TagsForPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset"}, tags)
}

func TestIngestURLStatus(t *testing.T) {
	tests := []struct {
		name  string
		media []instagrab.MediaItem
		want  storage.Status
	}{
		{"carousel all saved", []instagrab.MediaItem{image("https://cdn/a.jpg"), video("https://cdn/b.mp4")}, storage.StatusSaved},
		{"one item failed", []instagrab.MediaItem{image("https://cdn/a.jpg"), video("https://cdn/broken.mp4")}, storage.StatusFailed},
		{"caption only", nil, storage.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.fetcher.fail["https://cdn/broken.mp4"] = true
			env.resolver.posts["S1"] = &instagrab.PostMeta{Profile: "bob", Caption: "hi", Media: tt.media}

			out := env.client.IngestURL(context.Background(), "https://www.instagram.com/reel/S1/")
			require.NoError(t, out.Err)
			assert.Equal(t, StateCommitted, out.State)
			assert.Equal(t, tt.want, out.Status)
			assert.Equal(t, len(tt.media), out.Attempted)

			p, err := env.db.GetPost(context.Background(), "bob", "S1")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestCaptionWriteFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.resolver.posts["C9"] = &instagrab.PostMeta{Profile: "carol", Caption: "#tag", Media: []instagrab.MediaItem{image("https://cdn/c.jpg")}}
	// A directory where the caption file should go makes the write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(env.outDir, "carol", "C9", "C9.txt"), 0755))

	out := env.client.IngestURL(context.Background(), "https://site/p/C9/")
	require.NoError(t, out.Err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, storage.StatusSaved, out.Status)
	assert.Len(t, out.Saved, 1)

	p, err := env.db.GetPost(context.Background(), "carol", "C9")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, storage.StatusSaved, p.Status)
}

func TestIngestRejectsProfileOutsideOutputDir(t *testing.T) {
	for _, profile := range []string{"../../escaped", "..", "a/b", `a\b`, "."} {
		t.Run(profile, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.resolver.posts["X1"] = &instagrab.PostMeta{Profile: profile, Caption: "hi", Media: []instagrab.MediaItem{image("https://cdn/x.jpg")}}

			out := env.client.IngestURL(context.Background(), "https://site/p/X1/")
			assert.Equal(t, StateSkipped, out.State)
			var rerr *instagrab.ResolverError
			require.True(t, errors.As(out.Err, &rerr))
			assert.Empty(t, out.Saved)
			assert.Zero(t, out.Attempted)

			assert.NoFileExists(t, filepath.Join(env.outDir, profile, "X1", "X1.txt"))
			assert.NoFileExists(t, filepath.Join(env.outDir, profile, "X1", "X1_01.jpg"))
			// Nothing may be written next to the output root.
			entries, err := os.ReadDir(filepath.Dir(env.outDir))
			require.NoError(t, err)
			for _, e := range entries {
				assert.Contains(t, []string{"instagrab.db", "instagrab.db-wal", "instagrab.db-shm", "downloads"}, e.Name())
			}
			posts, err := env.db.QueryPosts(context.Background(), storage.PostFilter{})
			require.NoError(t, err)
			assert.Empty(t, posts)
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, storage.StatusFailed, DeriveStatus(instagrab.FetchResult{Saved: []string{"a"}, Attempted: 2}))
	assert.Equal(t, storage.StatusFailed, DeriveStatus(instagrab.FetchResult{}))
	assert.Equal(t, storage.StatusSaved, DeriveStatus(instagrab.FetchResult{Saved: []string{"a", "b"}, Attempted: 2}))
}

func TestRunSkipsInvalidAndContinues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.resolver.posts["GOOD1"] = &instagrab.PostMeta{Profile: "carol", Media: []instagrab.MediaItem{image("https://cdn/g.jpg")}}

	var progress []int
	summary, err := env.client.Run(ctx, []string{"https://site/notapost/xyz", "https://site/p/GOOD1/"}, func(current, total int, _ Outcome) {
		assert.Equal(t, 2, total)
		progress = append(progress, current)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Equal(t, 1, summary.Committed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Saved)

	require.Len(t, summary.Outcomes, 2)
	var invalid *instagrab.InvalidReferenceError
	assert.True(t, errors.As(summary.Outcomes[0].Err, &invalid))
	assert.Equal(t, StateSkipped, summary.Outcomes[0].State)
	assert.Equal(t, []string{"GOOD1"}, env.resolver.calls)

	posts, err := env.db.QueryPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "GOOD1", posts[0].ShortID)
}

func TestRunResolverFailureSkips(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	summary, err := env.client.Run(ctx, []string{"https://site/p/MISSING/"}, nil)
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)

	out := summary.Outcomes[0]
	assert.Equal(t, StateSkipped, out.State)
	var rerr *instagrab.ResolverError
	require.True(t, errors.As(out.Err, &rerr))
	assert.Equal(t, "MISSING", rerr.ShortID)

	posts, err := env.db.QueryPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestReingestUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.resolver.posts["R1"] = &instagrab.PostMeta{Profile: "dan", Caption: "#one", Media: []instagrab.MediaItem{image("https://cdn/r.jpg")}}
	env.fetcher.fail["https://cdn/r.jpg"] = true

	first := env.client.IngestURL(ctx, "https://site/p/R1/")
	require.NoError(t, first.Err)
	assert.Equal(t, storage.StatusFailed, first.Status)

	delete(env.fetcher.fail, "https://cdn/r.jpg")
	env.resolver.posts["R1"].Caption = "#one #two"
	second := env.client.IngestURL(ctx, "https://site/p/R1/")
	require.NoError(t, second.Err)
	assert.Equal(t, first.PostID, second.PostID)

	posts, err := env.db.QueryPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, storage.StatusSaved, posts[0].Status)
	tags, err := env.db.TagsForPost(ctx, first.PostID)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, tags)
}

// linkFailingStore fails every tag link inside its transactions.
type linkFailingStore struct {
	*sqlite.DB
}

type linkFailingWriter struct {
	storage.Writer
}

func (linkFailingWriter) LinkPostTag(context.Context, int64, int64) error {
	return &instagrab.StoreError{Op: "link tag", Err: errors.New("disk I/O error")}
}

func (s linkFailingStore) InTx(ctx context.Context, fn func(w storage.Writer) error) error {
	return s.DB.InTx(ctx, func(w storage.Writer) error {
		return fn(linkFailingWriter{w})
	})
}

func TestStoreErrorRollsBackPost(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(db *sqlite.DB) storage.Storer { return linkFailingStore{db} })
	env.resolver.posts["T1"] = &instagrab.PostMeta{Profile: "eve", Caption: "#tag", Media: []instagrab.MediaItem{image("https://cdn/t.jpg")}}
	env.resolver.posts["T2"] = &instagrab.PostMeta{Profile: "eve", Caption: "no tags", Media: []instagrab.MediaItem{image("https://cdn/u.jpg")}}

	summary, err := env.client.Run(ctx, []string{"https://site/p/T1/", "https://site/p/T2/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Committed)

	var serr *instagrab.StoreError
	assert.True(t, errors.As(summary.Outcomes[0].Err, &serr))

	p, err := env.db.GetPost(ctx, "eve", "T1")
	require.NoError(t, err)
	assert.Nil(t, p)
	p, err = env.db.GetPost(ctx, "eve", "T2")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

// cancellingPacer cancels the run on its first wait.
type cancellingPacer struct {
	cancel context.CancelFunc
}

func (p cancellingPacer) Wait(ctx context.Context) error {
	p.cancel()
	return ctx.Err()
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, nil, WithPacer(cancellingPacer{cancel: cancel}))
	env.resolver.posts["C1"] = &instagrab.PostMeta{Profile: "fay", Media: []instagrab.MediaItem{image("https://cdn/1.jpg"), image("https://cdn/2.jpg")}}
	env.resolver.posts["C2"] = &instagrab.PostMeta{Profile: "fay", Media: []instagrab.MediaItem{image("https://cdn/3.jpg")}}

	summary, err := env.client.Run(ctx, []string{"https://site/p/C1/", "https://site/p/C2/"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StateSkipped, summary.Outcomes[0].State)
	assert.Equal(t, 1, summary.Outcomes[0].Attempted)
	assert.Equal(t, []string{"C1"}, env.resolver.calls)

	posts, err := env.db.QueryPosts(context.Background(), storage.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "skipped", StateSkipped.String())
	assert.Equal(t, "state(42)", State(42).String())
}

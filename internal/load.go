package instagrab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"

	"github.com/perpetuallyhorni/instagrab/internal/fs"
)

// DefaultUserAgent is sent with media requests unless configured otherwise.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.1"

// Fetcher saves the bytes at url to the file dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url, dest string) error

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url, dest string) error { return f(ctx, url, dest) }

// Pacer blocks between consecutive media fetches.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Namer derives the destination path of the media item at a zero-based index.
type Namer func(index int, item MediaItem) string

// DefaultNamer names files <dir>/<shortID>_<NN><ext> with a 1-based, two-digit NN.
func DefaultNamer(dir, shortID string) Namer {
	return func(index int, item MediaItem) string {
		return filepath.Join(dir, fmt.Sprintf("%s_%02d%s", shortID, index+1, item.Kind.Ext()))
	}
}

// FetchAll fetches every item in order with a single attempt each. A failed
// item is logged and skipped; the pacer is waited on after every item. If ctx
// is cancelled the partial result is returned together with ctx.Err().
func FetchAll(ctx context.Context, items []MediaItem, namer Namer, fetcher Fetcher, pacer Pacer, logger *zap.Logger) (FetchResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := FetchResult{Saved: make([]string, 0, len(items))}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		dest := namer(i, item)
		result.Attempted++
		if err := fetcher.Fetch(ctx, item.URL, dest); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			ferr := &FetchError{Index: i + 1, URL: item.URL, Err: err}
			logger.Error("media fetch failed", zap.Int("index", i+1), zap.Int("total", len(items)), zap.Error(ferr))
		} else {
			result.Saved = append(result.Saved, dest)
			logger.Info("media saved", zap.Int("index", i+1), zap.Int("total", len(items)), zap.String("path", dest))
		}
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// GrabFetcher downloads media with grab, refusing to start when the
// destination filesystem has less than MinFreeBytes available.
type GrabFetcher struct {
	Client       *grab.Client
	MinFreeBytes uint64
}

// NewGrabFetcher creates a GrabFetcher using httpClient for transport.
func NewGrabFetcher(httpClient *http.Client, userAgent string, minFreeBytes uint64) *GrabFetcher {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
			Timeout:   5 * time.Minute,
		}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &GrabFetcher{
		Client:       &grab.Client{HTTPClient: httpClient, UserAgent: userAgent},
		MinFreeBytes: minFreeBytes,
	}
}

// Fetch downloads url into dest, creating parent directories as needed.
func (g *GrabFetcher) Fetch(ctx context.Context, url, dest string) error {
	dir := filepath.Dir(dest)
	// #nosec G301
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	if err := fs.EnsureFree(dir, g.MinFreeBytes, ErrDiskSpace); err != nil {
		return err
	}
	req, err := grab.NewRequest(dest, url)
	if err != nil {
		return err
	}
	req.NoResume = true
	req = req.WithContext(ctx)
	if resp := g.Client.Do(req); resp.Err() != nil {
		// grab leaves partial files behind on failure.
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("%w (cleanup: %v)", resp.Err(), rmErr)
		}
		return resp.Err()
	}
	return nil
}

package instagrab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Resolver turns a short identifier into post metadata.
type Resolver interface {
	Resolve(ctx context.Context, shortID string) (*PostMeta, error)
}

// APIResolver resolves posts through a JSON metadata service.
type APIResolver struct {
	// BaseURL is the root of the metadata service, e.g. http://localhost:8080/api.
	BaseURL string
	// HTTPClient performs the requests. http.DefaultClient is used when nil.
	HTTPClient *http.Client
	// UserAgent is sent with every request when set.
	UserAgent string
	// Logger receives raw response bodies at debug level.
	Logger *zap.Logger
}

// apiMedia is one entry of the service's media list.
type apiMedia struct {
	IsVideo bool   `json:"is_video"`
	URL     string `json:"url"`
}

// apiPost is the data payload of the post endpoint.
type apiPost struct {
	Profile  string     `json:"profile"`
	Caption  string     `json:"caption"`
	Typename string     `json:"typename"`
	Media    []apiMedia `json:"media"`
}

// NewAPIResolver creates an APIResolver for the given service root.
func NewAPIResolver(baseURL string, httpClient *http.Client, userAgent string, logger *zap.Logger) *APIResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIResolver{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		UserAgent:  userAgent,
		Logger:     logger,
	}
}

// Raw executes a GET request against the metadata service and returns the body.
func (r *APIResolver) Raw(ctx context.Context, method string, query map[string]string) ([]byte, error) {
	if r.BaseURL == "" {
		return nil, errors.New("metadata service URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.BaseURL, method), nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for key, val := range query {
		q.Add(key, val)
	}
	req.URL.RawQuery = q.Encode()
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.Logger.Warn("error closing response body", zap.Error(err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("metadata service returned %s", resp.Status)
	}
	buffer, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("metadata response", zap.String("method", method), zap.ByteString("body", buffer))
	return buffer, nil
}

// RawParsed executes a request and decodes the service envelope into T.
func RawParsed[T any](ctx context.Context, r *APIResolver, method string, query map[string]string) (*T, error) {
	data, err := r.Raw(ctx, method, query)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data *T     `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("metadata service error: %s (%d) [%s]", resp.Msg, resp.Code, method)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("metadata service returned no data [%s]", method)
	}
	return resp.Data, nil
}

// Resolve fetches the owner, caption and media list for a short identifier.
func (r *APIResolver) Resolve(ctx context.Context, shortID string) (*PostMeta, error) {
	post, err := RawParsed[apiPost](ctx, r, "post", map[string]string{"shortcode": shortID})
	if err != nil {
		return nil, &ResolverError{ShortID: shortID, Err: err}
	}
	if strings.TrimSpace(post.Profile) == "" {
		return nil, &ResolverError{ShortID: shortID, Err: errors.New("response has no profile")}
	}
	if err := CheckPathSegment(post.Profile); err != nil {
		return nil, &ResolverError{ShortID: shortID, Err: fmt.Errorf("unusable profile: %w", err)}
	}

	r.Logger.Debug("post metadata", zap.String("shortcode", shortID), zap.String("typename", post.Typename), zap.Int("media", len(post.Media)))

	meta := &PostMeta{
		Profile: post.Profile,
		Caption: post.Caption,
		Media:   make([]MediaItem, 0, len(post.Media)),
	}
	for i, m := range post.Media {
		if m.URL == "" {
			return nil, &ResolverError{ShortID: shortID, Err: fmt.Errorf("media %d has no URL", i+1)}
		}
		kind := MediaImage
		if m.IsVideo {
			kind = MediaVideo
		}
		meta.Media = append(meta.Media, MediaItem{Kind: kind, URL: m.URL})
	}
	return meta, nil
}

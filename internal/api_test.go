package instagrab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetadataServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/post" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("shortcode") == "" {
			http.Error(w, "missing shortcode", http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIResolverCarousel(t *testing.T) {
	srv := newMetadataServer(t, http.StatusOK, `{"code":0,"msg":"","data":{
		"profile":"alice","caption":"nice #Sunset","typename":"GraphSidecar",
		"media":[{"is_video":false,"url":"https://cdn/1.jpg"},{"is_video":true,"url":"https://cdn/2.mp4"}]}}`)

	r := NewAPIResolver(srv.URL+"/api/", srv.Client(), "", nil)
	meta, err := r.Resolve(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "alice", meta.Profile)
	assert.Equal(t, "nice #Sunset", meta.Caption)
	assert.True(t, meta.IsCarousel())
	assert.Equal(t, []MediaItem{
		{Kind: MediaImage, URL: "https://cdn/1.jpg"},
		{Kind: MediaVideo, URL: "https://cdn/2.mp4"},
	}, meta.Media)
}

func TestAPIResolverCaptionOnly(t *testing.T) {
	srv := newMetadataServer(t, http.StatusOK, `{"code":0,"data":{"profile":"bob","caption":"text only","media":[]}}`)

	meta, err := NewAPIResolver(srv.URL+"/api", srv.Client(), "", nil).Resolve(context.Background(), "X")
	require.NoError(t, err)
	assert.Empty(t, meta.Media)
	assert.False(t, meta.IsCarousel())
}

func TestAPIResolverFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"service error code", http.StatusOK, `{"code":-1,"msg":"not found"}`},
		{"http error", http.StatusBadGateway, `bad gateway`},
		{"bad json", http.StatusOK, `{"code":0,`},
		{"missing data", http.StatusOK, `{"code":0}`},
		{"missing profile", http.StatusOK, `{"code":0,"data":{"caption":"x"}}`},
		{"profile escapes output dir", http.StatusOK, `{"code":0,"data":{"profile":"../../escaped","media":[]}}`},
		{"profile is parent dir", http.StatusOK, `{"code":0,"data":{"profile":"..","media":[]}}`},
		{"media without url", http.StatusOK, `{"code":0,"data":{"profile":"a","media":[{"is_video":false}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newMetadataServer(t, tt.status, tt.body)
			_, err := NewAPIResolver(srv.URL+"/api", srv.Client(), "", nil).Resolve(context.Background(), "ABC")
			require.Error(t, err)
			var rerr *ResolverError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, "ABC", rerr.ShortID)
		})
	}
}

func TestAPIResolverNotConfigured(t *testing.T) {
	_, err := NewAPIResolver("", nil, "", nil).Resolve(context.Background(), "ABC")
	var rerr *ResolverError
	require.ErrorAs(t, err, &rerr)
}

func TestAPIResolverSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"code":0,"data":{"profile":"a"}}`))
	}))
	defer srv.Close()

	_, err := NewAPIResolver(srv.URL, srv.Client(), "instagrab-test", nil).Resolve(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "instagrab-test", got)
}

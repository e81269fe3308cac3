package instagrab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveShortID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"post", "https://www.instagram.com/p/ABC123/", "ABC123"},
		{"post without trailing slash", "https://www.instagram.com/p/ABC123", "ABC123"},
		{"reel", "https://www.instagram.com/reel/Cx_9-z/", "Cx_9-z"},
		{"tv", "https://www.instagram.com/tv/XYZ/", "XYZ"},
		{"query string ignored", "https://site/p/ABC123/?igsh=abc", "ABC123"},
		{"extra segments", "https://site/p/ABC123/media/", "ABC123"},
		{"surrounding whitespace", "  https://site/p/ABC123/ ", "ABC123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveShortID(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveShortIDInvalid(t *testing.T) {
	for _, raw := range []string{
		"https://site/notapost/xyz",
		"https://site/p/",
		"https://site/",
		"https://site/ABC123",
		"https://site/stories/alice/123",
		"",
		"://bad",
		"https://site/p/../",
		"https://site/p/%2E%2E/",
		`https://site/p/a\b/`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ResolveShortID(raw)
			require.Error(t, err)
			var ref *InvalidReferenceError
			require.True(t, errors.As(err, &ref))
			assert.Equal(t, raw, ref.URL)
		})
	}
}

func TestResolveShortIDDeterministic(t *testing.T) {
	a, errA := ResolveShortID("https://site/reel/Q1/")
	b, errB := ResolveShortID("https://site/reel/Q1/")
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestCheckPathSegment(t *testing.T) {
	for _, ok := range []string{"alice", "alice.b", "a_b-c", "ünïcode"} {
		assert.NoError(t, CheckPathSegment(ok), ok)
	}
	for _, bad := range []string{"", " ", ".", "..", "../x", "a/b", `a\b`, "a\x00b"} {
		assert.Error(t, CheckPathSegment(bad), bad)
	}
}

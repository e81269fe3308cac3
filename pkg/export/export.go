// Package export projects the post store into a flat list of JSON documents.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
)

// Document is one exported post.
type Document struct {
	ID        int64    `json:"id"`
	Profile   string   `json:"perfil"`
	ShortID   string   `json:"shortcode"`
	SourceURL string   `json:"url_completa"`
	Caption   *string  `json:"descricao"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"criado_em"`
	UpdatedAt string   `json:"atualizado_em"`
	Hashtags  []string `json:"hashtags"`
}

// Projector builds export documents from a store. It never writes to the store.
type Projector struct {
	store storage.Reader
}

// NewProjector creates a Projector reading from store.
func NewProjector(store storage.Reader) *Projector {
	return &Projector{store: store}
}

// ExportAll returns every post, newest first, with its sorted hashtags.
func (p *Projector) ExportAll(ctx context.Context) ([]Document, error) {
	posts, err := p.store.QueryPosts(ctx, storage.PostFilter{})
	if err != nil {
		return nil, &instagrab.ExportError{Err: err}
	}
	return p.Project(ctx, posts)
}

// Project converts posts to documents, attaching the tags of each post.
func (p *Projector) Project(ctx context.Context, posts []storage.Post) ([]Document, error) {
	docs := make([]Document, 0, len(posts))
	for _, post := range posts {
		tags, err := p.store.TagsForPost(ctx, post.ID)
		if err != nil {
			return nil, &instagrab.ExportError{Err: err}
		}
		if tags == nil {
			tags = []string{}
		}
		docs = append(docs, Document{
			ID:        post.ID,
			Profile:   post.Profile,
			ShortID:   post.ShortID,
			SourceURL: post.SourceURL,
			Caption:   post.Caption,
			Status:    string(post.Status),
			CreatedAt: formatTime(post.CreatedAt),
			UpdatedAt: formatTime(post.UpdatedAt),
			Hashtags:  tags,
		})
	}
	return docs, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storage.TimeLayout)
}

// Encode renders docs as indented UTF-8 JSON without HTML escaping.
func Encode(docs []Document) ([]byte, error) {
	if docs == nil {
		docs = []Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes docs to path through a temporary file in the same
// directory, so readers never observe a partial document.
func WriteFile(path string, docs []Document) error {
	data, err := Encode(docs)
	if err != nil {
		return &instagrab.ExportError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &instagrab.ExportError{Path: path, Err: fmt.Errorf("failed to create temporary file: %w", err)}
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &instagrab.ExportError{Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &instagrab.ExportError{Path: path, Err: err}
	}
	// #nosec G302
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return &instagrab.ExportError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &instagrab.ExportError{Path: path, Err: err}
	}
	return nil
}

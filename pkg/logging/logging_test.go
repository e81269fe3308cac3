package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewRespectsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", zap.String("k", "v"))
	_ = logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "INFO")

	buf.Reset()
	logger = New(&buf, true)
	logger.Debug("visible")
	_ = logger.Sync()
	assert.Contains(t, buf.String(), "visible")
}

func TestRedactingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactingWriter(&buf, "/home/me/instagrab", []string{
		"https://www.instagram.com/p/SECRET1/",
		"not a url",
	})

	line := "saved /home/me/instagrab/alice/SECRET1/SECRET1_01.jpg from https://www.instagram.com/reel/Other_2/\n"
	n, err := w.Write([]byte(line))
	assert.NoError(t, err)
	assert.Equal(t, len(line), n)

	out := buf.String()
	assert.NotContains(t, out, "/home/me/instagrab")
	assert.NotContains(t, out, "SECRET1")
	assert.NotContains(t, out, "Other_2")
	assert.Contains(t, out, "[OUTPUT_DIR]")
	assert.Contains(t, out, "/reel/[SHORTCODE]")
}

func TestRedactingWriterThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(NewRedactingWriter(&buf, "/data/out", nil), false)
	logger.Info("media saved", zap.String("path", "/data/out/bob/X/X_01.jpg"))
	_ = logger.Sync()
	assert.Contains(t, buf.String(), "[OUTPUT_DIR]/bob")
}

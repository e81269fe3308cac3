package logging

import (
	"io"
	"regexp"
	"strings"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
)

// postPathRegex matches the short code segment of a post URL path.
var postPathRegex = regexp.MustCompile(`/(p|reel|tv)/[A-Za-z0-9_-]+`)

type replacement struct {
	re   *regexp.Regexp
	repl string
}

// RedactingWriter is an io.Writer that redacts sensitive information before
// writing to an underlying writer.
type RedactingWriter struct {
	underlying   io.Writer
	replacements []replacement
}

// NewRedactingWriter creates a writer that hides the output directory, post
// URL short codes and the short codes of the given target URLs.
func NewRedactingWriter(w io.Writer, outputDir string, targets []string) io.Writer {
	var replacements []replacement

	if outputDir != "" {
		// Match both separators so Windows paths are caught as well.
		sanitizedPath := strings.ReplaceAll(regexp.QuoteMeta(outputDir), `\\`, `[/\\]`)
		replacements = append(replacements, replacement{regexp.MustCompile(sanitizedPath), "[OUTPUT_DIR]"})
	}
	replacements = append(replacements, replacement{postPathRegex, "/$1/[SHORTCODE]"})

	for _, target := range targets {
		shortID, err := instagrab.ResolveShortID(target)
		if err != nil {
			continue
		}
		replacements = append(replacements, replacement{regexp.MustCompile(regexp.QuoteMeta(shortID)), "[SHORTCODE]"})
	}

	return &RedactingWriter{
		underlying:   w,
		replacements: replacements,
	}
}

// Write redacts p and writes it to the underlying writer.
func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	message := string(p)
	for _, r := range rw.replacements {
		message = r.re.ReplaceAllString(message, r.repl)
	}
	if _, err := rw.underlying.Write([]byte(message)); err != nil {
		return 0, err
	}
	// The original length is reported; callers only care that p was consumed.
	return len(p), nil
}

package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Config struct holds the core, application-agnostic configuration.
type Config struct {
	OutputDir      string        `koanf:"output_dir"`        // Base directory; posts land in <output_dir>/<profile>/<shortcode>/.
	Delay          float64       `koanf:"delay"`             // Seconds to wait after every media request.
	SaveCaption    bool          `koanf:"save_caption"`      // Write the caption to <shortcode>.txt next to the media.
	ResolverURL    string        `koanf:"resolver_url"`      // Root of the post metadata service.
	UserAgent      string        `koanf:"user_agent"`        // User agent for metadata and media requests.
	HTTPTimeout    time.Duration `koanf:"http_timeout"`      // Timeout of a single HTTP request.
	MinFreeSpaceMB uint64        `koanf:"min_free_space_mb"` // Refuse media downloads below this much free space. 0 disables the check.
	BindAddress    string        `koanf:"bind_address"`      // Comma-separated local IPs or interfaces to dial from.
}

// Default returns the default core configuration.
func Default() *Config {
	var defaultPath string
	downloadDir := xdg.UserDirs.Download
	if downloadDir != "" {
		defaultPath = filepath.Join(downloadDir, "instagrab")
	} else {
		// Fallback for systems without a configured XDG downloads directory.
		defaultPath = "downloads"
	}

	return &Config{
		OutputDir:      defaultPath,
		Delay:          1.0,
		SaveCaption:    true,
		ResolverURL:    "http://127.0.0.1:8080/api",
		HTTPTimeout:    5 * time.Minute,
		MinFreeSpaceMB: 0,
	}
}

// MinFreeBytes converts MinFreeSpaceMB to bytes.
func (c *Config) MinFreeBytes() uint64 {
	return c.MinFreeSpaceMB * 1024 * 1024
}

// DelayDuration converts Delay to a time.Duration.
func (c *Config) DelayDuration() time.Duration {
	if c.Delay <= 0 {
		return 0
	}
	return time.Duration(c.Delay * float64(time.Second))
}

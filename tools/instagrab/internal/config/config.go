package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/perpetuallyhorni/instagrab/pkg/config"
)

const AppName = "instagrab"

// Config extends the core config with CLI-specific options.
type Config struct {
	config.Config `koanf:",squash"`
	DatabasePath  string `koanf:"database_path"`
	InputFile     string `koanf:"input_file"`
	ExportPath    string `koanf:"export_path"`
	Editor        string `koanf:"editor"`
}

// Default returns the default CLI configuration.
func Default() (*Config, error) {
	coreCfg := config.Default()
	dbPath, err := xdg.DataFile(filepath.Join(AppName, "instagrab.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to get default db path: %w", err)
	}
	return &Config{
		Config:       *coreCfg,
		DatabasePath: dbPath,
		ExportPath:   "data.json",
	}, nil
}

// DefaultConfigPath returns the config file location used when none is given.
func DefaultConfigPath() (string, error) {
	p, err := xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to get default config path: %w", err)
	}
	return p, nil
}

// DefaultInputFile returns the URL list opened by 'edit input' when input_file is unset.
func DefaultInputFile() (string, error) {
	p, err := xdg.DataFile(filepath.Join(AppName, "links.txt"))
	if err != nil {
		return "", fmt.Errorf("failed to get default input file path: %w", err)
	}
	return p, nil
}

// Load loads the configuration from the given path, creating a commented
// default file there first if it does not exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	defCfg, err := Default()
	if err != nil {
		return nil, err
	}
	cfgPath := path
	if cfgPath == "" {
		if cfgPath, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := createDefaultConfig(cfgPath, defCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg := defCfg
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// An empty database_path in the file would point SQLite at the working directory.
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = defCfg.DatabasePath
	}
	return cfg, nil
}

// createDefaultConfig creates a default configuration file.
func createDefaultConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := fmt.Sprintf(`# instagrab CLI configuration file.
# Base directory; each post is saved under <output_dir>/<profile>/<shortcode>/.
output_dir: "%s"
# Seconds to wait after every media request.
delay: %g
# Set to true to write the caption to <shortcode>.txt next to the media.
save_caption: %t
# Root URL of the post metadata service.
resolver_url: "%s"
# User agent for metadata and media requests. Empty uses a desktop browser string.
user_agent: "%s"
# Timeout of a single HTTP request, e.g. "30s", "5m".
http_timeout: "%s"
# Skip media downloads when the output filesystem has less free space (MB). 0 disables.
min_free_space_mb: %d
# Comma-separated local IP addresses or interface names to send requests from.
bind_address: "%s"
# Path to the SQLite database of ingested posts.
database_path: "%s"
# Optional file with post URLs, one or more per line (comma-separated).
input_file: "%s"
# Default output of the 'export' command.
export_path: "%s"
# Editor to use for the 'edit' command. If empty, it will check $EDITOR, then common editors.
editor: "%s"
`, cfg.OutputDir, cfg.Delay, cfg.SaveCaption, cfg.ResolverURL, cfg.UserAgent, cfg.HTTPTimeout, cfg.MinFreeSpaceMB,
		cfg.BindAddress, cfg.DatabasePath, cfg.InputFile, cfg.ExportPath, cfg.Editor)
	content = strings.ReplaceAll(content, "\\", "/")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}

// CreateDefaultInputFile writes a commented, empty URL list to path.
func CreateDefaultInputFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create input file directory: %w", err)
	}
	content := `# Add Instagram post URLs here, one or more per line (comma-separated).
# Lines starting with # are ignored.
#
# Example:
# https://www.instagram.com/p/ABC123/
# https://www.instagram.com/reel/XYZ789/, https://www.instagram.com/tv/QRS456/
`
	return os.WriteFile(path, []byte(content), 0600)
}

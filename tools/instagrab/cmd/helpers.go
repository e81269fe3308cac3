package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/perpetuallyhorni/instagrab/pkg/logging"
	cliconfig "github.com/perpetuallyhorni/instagrab/tools/instagrab/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// applyFlagOverrides applies command-line flag overrides to the configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *cliconfig.Config) {
	if changed(cmd, "db") {
		cfg.DatabasePath, _ = cmd.Flags().GetString("db")
	}
	if changed(cmd, "input-file") {
		cfg.InputFile, _ = cmd.Flags().GetString("input-file")
	}
	if changed(cmd, "output-dir") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if changed(cmd, "delay") {
		cfg.Delay, _ = cmd.Flags().GetFloat64("delay")
	}
	if changed(cmd, "resolver-url") {
		cfg.ResolverURL, _ = cmd.Flags().GetString("resolver-url")
	}
	if changed(cmd, "bind") {
		cfg.BindAddress, _ = cmd.Flags().GetString("bind")
	}
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// setupFileLogger opens the application log file and builds the logger on top
// of it. With debug set, entries are copied to stderr as well.
func setupFileLogger(clean, debug bool, targets []string, cfg *cliconfig.Config) (*zap.Logger, func(), error) {
	logPath, err := xdg.StateFile(filepath.Join(cliconfig.AppName, "app.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("could not get log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0750); err != nil {
		return nil, nil, fmt.Errorf("could not create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640) // #nosec G304 G302
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file: %w", err)
	}

	var writer io.Writer = f
	if clean {
		writer = logging.NewRedactingWriter(f, cfg.OutputDir, targets)
	}
	if debug {
		writer = io.MultiWriter(writer, os.Stderr)
	}

	l := logging.New(writer, debug)
	closer := func() {
		_ = l.Sync()
		_ = f.Close()
	}
	return l, closer, nil
}

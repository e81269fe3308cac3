package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	cliconfig "github.com/perpetuallyhorni/instagrab/tools/instagrab/internal/config"
	"github.com/spf13/cobra"
)

// editCmd is the parent command for editing configuration files.
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration or input file in your default editor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// editConfigCmd is the command for editing the main configuration file.
var editConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Edit the configuration file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFilePath := flagConfigPath
		if configFilePath == "" {
			var err error
			if configFilePath, err = cliconfig.DefaultConfigPath(); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(configFilePath), 0750); err != nil {
			return fmt.Errorf("could not create config directory: %w", err)
		}

		editor, err := determineEditor(cmd)
		if err != nil {
			return err
		}
		console.Info("Opening config file with '%s': %s", editor, configFilePath)
		return openInEditor(editor, configFilePath)
	},
}

// editInputCmd is the command for editing the URL list.
var editInputCmd = &cobra.Command{
	Use:   "input",
	Short: "Edit the input file of post URLs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.InputFile
		if path == "" {
			var err error
			if path, err = cliconfig.DefaultInputFile(); err != nil {
				return err
			}
			console.Info("No input_file configured; set it to %s to ingest this list by default.", path)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := cliconfig.CreateDefaultInputFile(path); err != nil {
				return fmt.Errorf("could not create input file: %w", err)
			}
		}

		editor, err := determineEditor(cmd)
		if err != nil {
			return err
		}
		console.Info("Opening input file with '%s': %s", editor, path)
		return openInEditor(editor, path)
	},
}

// determineEditor selects the editor to use based on flag, config, env var, and fallbacks.
func determineEditor(cmd *cobra.Command) (string, error) {
	if editor, _ := cmd.Flags().GetString("editor"); editor != "" {
		return editor, nil
	}
	if cfg.Editor != "" {
		return cfg.Editor, nil
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor, nil
	}

	switch runtime.GOOS {
	case "windows":
		return "notepad", nil
	default:
		for _, editor := range []string{"nano", "vi", "vim"} {
			if path, err := exec.LookPath(editor); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no suitable editor found. please set the --editor flag, 'editor' in your config, or the $EDITOR environment variable")
}

// openInEditor opens the specified file in the given editor.
func openInEditor(editor, filePath string) error {
	// #nosec G204 -- The editor comes from flags, config, $EDITOR or fixed fallbacks.
	cmd := exec.Command(editor, filePath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func init() {
	editCmd.PersistentFlags().String("editor", "", "Editor to use for opening files (e.g., 'code', 'vim', 'notepad'). Overrides config and $EDITOR.")
	editCmd.AddCommand(editConfigCmd)
	editCmd.AddCommand(editInputCmd)
}

// Package cli implements the knightmint CLI commands.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "knightmint",
	Short: "Chess puzzle mini-app service",
	Long:  "Leveled chess puzzle service with pay-to-unlock revives, hints, and answers.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration JSON file (default: $KNIGHTMINT_CONFIG or config.json)")
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(versionCmd)
}

// resolveConfigPath resolves the config location: --config flag, then the
// KNIGHTMINT_CONFIG env var, then config.json next to the executable or in
// the working directory.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("KNIGHTMINT_CONFIG"); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

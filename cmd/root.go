// Package cmd holds the teleops CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleops/internal/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	configPath string
	logLevel   string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teleops",
		Short: "Chat-driven remote operations console",
		Long: "teleops runs a Telegram bot that exposes a small operations console:\n" +
			"container and torrent management, host health, and scheduled digests,\n" +
			"gated by an allow-list, TOTP elevation and per-command rate limits.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(authCodeCmd())
	cmd.AddCommand(commandsCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the teleops version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("teleops %s\n", version)
		},
	}
}

// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"zippyst/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagShort       bool
	flagJSON        bool
	flagDownload    bool
	flagDir         string
	flagSchemes     string
	flagConcurrency int
	flagTimeout     int
	flagNoHistory   bool
	flagDebug       bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zippyst [flags] <link>...",
	Short: "Resolve share pages into direct download links",
	Long: `Zippyst fetches share pages and evaluates their obfuscated download
script to print the direct link for each file. Links are resolved
concurrently and printed in the order given.`,
	Args:              cobra.MinimumNArgs(1),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              resolveRun,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVarP(&flagShort, "short", "s", false, "Print short links ending in /DOWNLOAD")
	rootCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Print results as a JSON array")
	rootCmd.Flags().BoolVarP(&flagDownload, "download", "d", false, "Download resolved files")
	rootCmd.Flags().StringVar(&flagDir, "dir", "", "Download directory (default: download_dir from config)")
	rootCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 0, "Parallel resolutions (1-32)")
	rootCmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record resolved links")

	rootCmd.PersistentFlags().StringVar(&flagSchemes, "schemes", "", "Comma-separated scheme names, in priority order")
	rootCmd.PersistentFlags().IntVar(&flagTimeout, "timeout", 0, "Request timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(schemesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagSchemes != "" {
		cfg.Schemes = splitList(flagSchemes)
	}
	if flagConcurrency != 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagTimeout != 0 {
		cfg.Timeout = flagTimeout
	}
	if flagShort {
		cfg.Output = config.OutputShort
	}
	if flagNoHistory {
		cfg.History = false
	}
	if flagDir != "" {
		cfg.DownloadDir = flagDir
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.SetOutput(os.Stderr)
	if cfg.Debug {
		log.SetPrefix("[zippyst] ")
	} else {
		log.SetFlags(0)
	}

	return nil
}

// debugf logs a message if debug mode is enabled.
func debugf(format string, args ...any) {
	if cfg != nil && cfg.Debug {
		log.Printf(format, args...)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

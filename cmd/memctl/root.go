package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/platform"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	noColor  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect and edit memkit buffer files",
	Long: `memctl is a tool for inspecting memory-mapped memkit buffers.
It identifies stream and hash table headers, reads and writes
uint64 hash tables stored in .mem files, benchmarks the containers,
and watches buffer files for changes.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelDebug
		if logLevel != "" {
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
		}
		logger.Init(logger.Options{
			Enabled: (verbose || logLevel != "") && !quiet,
			Level:   level,
			JSON:    jsonOut,
		})
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log container events to stderr at this level (debug, info, warn, error)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// splitBufferPath maps a .mem file path to the allocator directory and
// buffer name.
func splitBufferPath(path string) (dir, name string, err error) {
	base := filepath.Base(path)
	name = strings.TrimSuffix(base, platform.FileExt)
	if name == "" || name == base {
		return "", "", fmt.Errorf("%s: buffer files end in %s", path, platform.FileExt)
	}
	return filepath.Dir(path), name, nil
}

// Longplay is a headless playback engine for a local music library.
// It scans media directories into a SQLite catalog, plays them through
// a local speaker or an MPD server, exposes the session over MPRIS,
// and keeps playback alive across session locks and suspends.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nvallois/longplay/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "longplay",
	Short:         "Headless playback engine for downloaded media",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("longplay", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) zerolog.Logger {
	lc := cfg.GetLogConfig()

	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if lc.Format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvallois/longplay/internal/config"
	"github.com/nvallois/longplay/internal/errmsg"
	"github.com/nvallois/longplay/internal/library"
	"github.com/nvallois/longplay/internal/store"
)

var scanFull bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index the configured media directories",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runScan()
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanFull, "full", false, "re-read every file, ignoring modification times")
}

func runScan() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	log := newLogger(cfg)

	if len(cfg.LibrarySources) == 0 {
		return fmt.Errorf("no library_sources configured")
	}

	dataDir := cfg.GetDataDir()
	st, err := store.OpenPath(filepath.Join(dataDir, "longplay.db"), log)
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStoreOpen, err))
	}
	defer st.Close()

	lib := library.New(st, filepath.Join(dataDir, "thumbnails"), log)

	scan := lib.Scan
	if scanFull {
		scan = lib.FullScan
	}
	stats, err := scan(context.Background(), cfg.LibrarySources)
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpLibraryScan, err))
	}
	logScanStats(log, stats)
	return nil
}

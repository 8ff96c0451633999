package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/capless/moments/internal/app"
	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/transcript"
	"github.com/capless/moments/internal/watcher"
	"github.com/spf13/cobra"
)

var watchConcurrency int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and process new transcripts",
	Long: `Watch WATCH_DIR for new transcript files and run the pipeline on
each. Result records are written to OUTPUT_DIR and archived in the run
database. Stops on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchConcurrency, "concurrency", 2, "Maximum transcripts processed in parallel")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForWatch(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	handler := func(ctx context.Context, path string) error {
		sess, err := transcript.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load transcript: %w", err)
		}

		rec, err := a.Pipeline.Run(ctx, sess)
		if err != nil {
			return fmt.Errorf("run pipeline: %w", err)
		}
		rec.SourcePath = path

		if err := a.Store.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
		return writeRecord(rec, outputName(cfg.OutputDir, path, rec.RunID))
	}

	w := watcher.New(cfg.WatchDir, handler, watchConcurrency)
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("watch stopped")
		return nil
	}
	return err
}

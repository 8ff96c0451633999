package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/store"
	"github.com/capless/moments/internal/vectorstore"
	"github.com/spf13/cobra"
)

var statsRuns int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run archive statistics",
	Long:  `Display statistics about archived runs and their selected moments.`,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 10, "Recent runs to list")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	st, err := store.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer st.Close()

	// Ensure migrations are run
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	totals, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Println("=== Moments Statistics ===")
	fmt.Println()
	fmt.Printf("Runs:            %d (%d degraded)\n", totals.TotalRuns, totals.DegradedRuns)
	fmt.Printf("Moments:         %d\n", totals.TotalMoments)
	fmt.Printf("Avg per run:     %.1f\n", totals.AvgFinalCount)

	if cfg.VecLitePath != "" {
		if vs, err := vectorstore.New(vectorstore.Config{Path: cfg.VecLitePath}); err == nil {
			fmt.Printf("Indexed:         %d\n", vs.Count())
			vs.Close()
		} else {
			slog.Debug("vector store unavailable", "error", err)
		}
	}

	runs, err := st.ListRuns(ctx, statsRuns)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Recent runs:")
	for _, r := range runs {
		flag := ""
		if r.Degraded {
			flag = "  (degraded)"
		}
		fmt.Printf("  %s  %s  %d/%d moments%s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.ID, r.FinalCount, r.TotalFound, flag)
	}
	return nil
}

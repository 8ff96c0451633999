package main

import (
	"context"
	"fmt"

	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/vectorstore"
	"github.com/spf13/cobra"
)

var (
	similarTopK      int
	similarThreshold float32
	similarRun       string
)

var similarCmd = &cobra.Command{
	Use:   "similar <query>",
	Short: "Search archived moments by similarity",
	Long: `Search the VecLite archive for moments similar to the query text.

Examples:
  moments similar "heated exchange about the budget"
  moments similar "resignation demand" --top 5 --threshold 0.7
  moments similar "apology" --run 2f6b...`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVar(&similarTopK, "top", 10, "Maximum results")
	similarCmd.Flags().Float32Var(&similarThreshold, "threshold", 0, "Minimum similarity (0 disables)")
	similarCmd.Flags().StringVar(&similarRun, "run", "", "Restrict to one run id")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForSimilar(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	vs, err := vectorstore.New(vectorstore.Config{Path: cfg.VecLitePath})
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer vs.Close()

	var hits []vectorstore.MomentHit
	switch {
	case similarRun != "":
		hits, err = vs.SearchByRun(ctx, query, similarRun, similarTopK)
	case similarThreshold > 0:
		hits, err = vs.SearchWithThreshold(ctx, query, similarThreshold, similarTopK)
	default:
		hits, err = vs.Search(ctx, query, similarTopK)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No similar moments found.")
		return nil
	}
	for i, h := range hits {
		fmt.Printf("%d. [%.3f] %q\n", i+1, h.Similarity, h.Quote)
		fmt.Printf("   speaker=%s topic=%s score=%.1f run=%s\n", h.Speaker, h.Topic, h.FinalScore, h.RunID)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/capless/moments/internal/chunker"
	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/transcript"
	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <transcript>",
	Short: "Preview how a transcript would be chunked",
	Long: `Split a transcript and print the resulting chunk boundaries without
calling the extraction oracle. Useful for tuning window and overlap sizes.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		return err
	}

	sess, err := transcript.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	chunks, err := chunker.New(tuning.Chunking).Chunk(sess)
	if err != nil {
		return fmt.Errorf("chunk transcript: %w", err)
	}

	for _, ch := range chunks {
		kind := "stream"
		if len(ch.Captions) == 0 {
			kind = "section"
			if ch.IsSubchunk {
				kind = "sub-chunk"
			}
		}
		fmt.Printf("%s  %-9s  span %.1f-%.1f  %d chars", ch.ID, kind, ch.Span.Start, ch.Span.End, len(ch.Text))
		if ch.OverlapWithNext != nil {
			fmt.Printf("  overlap-next %.1f-%.1f", ch.OverlapWithNext.Start, ch.OverlapWithNext.End)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d chunks\n", len(chunks))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/capless/moments/internal/app"
	"github.com/capless/moments/internal/config"
	"github.com/capless/moments/internal/transcript"
	"github.com/capless/moments/internal/vectorstore"
	"github.com/spf13/cobra"
)

var (
	extractOutput  string
	extractArchive bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <transcript>",
	Short: "Extract viral moments from a transcript",
	Long: `Run the full pipeline over one transcript file (.vtt or .json).

Examples:
  moments extract session.vtt                   # Print the result record
  moments extract session.vtt -o result.json    # Write it to a file
  moments extract session.vtt --archive         # Also index moments in VecLite`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Write the result record to this file")
	extractCmd.Flags().BoolVar(&extractArchive, "archive", false, "Index selected moments in the VecLite store")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForExtract(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	sess, err := transcript.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	slog.Info("starting extraction", "path", path)
	rec, err := a.Pipeline.Run(ctx, sess)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	rec.SourcePath = path

	if err := a.Store.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	if extractArchive && len(rec.FinalMoments) > 0 {
		vs, err := vectorstore.New(vectorstore.Config{Path: cfg.VecLitePath})
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		defer vs.Close()
		if err := vs.InsertRun(ctx, rec.RunID, rec.FinalMoments); err != nil {
			return fmt.Errorf("archive moments: %w", err)
		}
		slog.Info("archived moments", "count", len(rec.FinalMoments))
	}

	return writeRecord(rec, extractOutput)
}

func writeRecord(rec any, output string) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// outputName derives the record filename for a transcript path.
func outputName(dir, transcriptPath, runID string) string {
	base := strings.TrimSuffix(filepath.Base(transcriptPath), filepath.Ext(transcriptPath))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", base, runID))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/manualqa/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Index a manual into the vector store",
	Long: `Read the manual (PDF_PATH by default), clean and chunk its pages, embed the
chunks and replace the vector index contents with them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, _, err := setup(false)
		if err != nil {
			return err
		}
		path := cfg.PDFPath
		if len(args) == 1 {
			path = args[0]
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read manual: %w", err)
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		w := pipeline.NewWorker(a.index, nil, log, a.workerConfig())
		snap := w.Ingest(cmd.Context(), uuid.NewString(), filepath.Base(path), data)
		printIngest(cmd.OutOrStdout(), snap)
		if snap.Status == pipeline.StatusFailed {
			return fmt.Errorf("ingest %s failed", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

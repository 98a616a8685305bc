package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Run the full ingest pipeline on one file",
	Long: `extract loads a document, classifies it (unless --type is given), splits it
into sections, runs the specialist extractor for each section, and stores the
facts, questions, and vocabulary. The job summary and extracted items are
printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noStore, _ := cmd.Flags().GetBool("no-store")
		a, err := newApp(cmd, noStore)
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		declared, _ := cmd.Flags().GetString("type")
		if declared != "" {
			t, ok := classify.Normalize(declared)
			if !ok {
				return fmt.Errorf("unknown document type %q", declared)
			}
			declared = t
		}

		job := pipeline.NewJob(filepath.Base(args[0]), data)
		job.DeclaredType = declared
		job.SourceID, _ = cmd.Flags().GetString("source-id")
		job.Qualification, _ = cmd.Flags().GetString("qualification")
		job.Focus, _ = cmd.Flags().GetString("focus")
		job.Domain, _ = cmd.Flags().GetString("domain")
		if job.Domain == "" {
			job.Domain = a.cfg.DefaultDomain
		}

		orch := pipeline.NewOrchestrator(pipeline.Options{}, pipeline.NewMemoryTracker(a.cfg.JobTTL), a.deps(), a.log)
		snap := orch.RunSync(cmd.Context(), job)

		if err := printJSON(map[string]any{
			"job":    snap,
			"result": job.Result(),
		}); err != nil {
			return err
		}
		if snap.Status == pipeline.StatusFailed {
			return fmt.Errorf("extraction failed: %v", snap.Progress.Errors)
		}
		return nil
	},
}

func init() {
	addDocumentFlags(extractCmd)
	extractCmd.Flags().String("focus", "", "topic to emphasize during extraction")
	extractCmd.Flags().String("source-id", "", "source id (default: derived from the file content)")
	extractCmd.Flags().Bool("no-store", false, "print results without writing to the database")

	rootCmd.AddCommand(extractCmd)
}

// addDocumentFlags registers the flags describing an input document.
func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "declared document type, skips classification (e.g. WORKSHEET)")
	cmd.Flags().String("qualification", "", "qualification or course, e.g. \"GCSE Biology\"")
	cmd.Flags().String("domain", "", "domain for config overrides and correction examples")
}

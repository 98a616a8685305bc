package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/source"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Classify a document's pedagogical type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noStore, _ := cmd.Flags().GetBool("no-store")
		a, err := newApp(cmd, noStore)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := loadFile(args[0])
		if err != nil {
			return err
		}
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			domain = a.cfg.DefaultDomain
		}
		cfg, err := a.configs.Resolve(domain, "")
		if err != nil {
			return err
		}

		var corrections classify.CorrectionSource
		if a.store != nil {
			corrections = a.store
		}
		fewShot := classify.FewShot(cmd.Context(), corrections, domain, cfg.Classification.FewShotMax, a.log)
		cls := classify.New(a.gateway, a.log).Classify(cmd.Context(), doc.Text, doc.FileName, cfg, fewShot)
		return printJSON(cls)
	},
}

func init() {
	classifyCmd.Flags().String("domain", "", "domain for config overrides and correction examples")
	classifyCmd.Flags().Bool("no-store", false, "skip correction examples and call logging")
	rootCmd.AddCommand(classifyCmd)
}

func loadFile(path string) (*source.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return source.LoadBytes(data, filepath.Base(path))
}

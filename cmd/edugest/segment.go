package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/segment"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// sectionView is a section as printed by the segment command.
type sectionView struct {
	segment.Section
	Chars   int    `json:"chars"`
	Skipped bool   `json:"skipped,omitempty"`
	Preview string `json:"preview"`
}

const previewChars = 120

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Show the sections a document splits into and how each is filtered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := loadFile(args[0])
		if err != nil {
			return err
		}
		domain, _ := cmd.Flags().GetString("domain")
		docType, _ := cmd.Flags().GetString("type")
		if docType != "" {
			t, ok := classify.Normalize(docType)
			if !ok {
				return fmt.Errorf("unknown document type %q", docType)
			}
			docType = t
		}
		cfg, err := a.configs.Resolve(domain, docType)
		if err != nil {
			return err
		}

		seg := segment.New(a.gateway, a.log).Segment(cmd.Context(), doc.Text, doc.FileName, cfg)
		filtered, err := segment.Filter(doc.Text, seg.Sections, cfg.Filter)
		if err != nil {
			return err
		}

		views := make([]sectionView, 0, len(filtered.Sections)+len(filtered.Skipped))
		for _, s := range filtered.Sections {
			views = append(views, newSectionView(doc.Text, s, false))
		}
		for _, s := range filtered.Skipped {
			views = append(views, newSectionView(doc.Text, s, true))
		}
		return printJSON(map[string]any{
			"file_name":    doc.FileName,
			"chars":        len(doc.Text),
			"is_composite": seg.IsComposite,
			"sections":     views,
			"warnings":     append(seg.Warnings, filtered.Warnings...),
		})
	},
}

func newSectionView(text string, s segment.Section, skipped bool) sectionView {
	return sectionView{
		Section: s,
		Chars:   s.Len(),
		Skipped: skipped,
		Preview: textnorm.Truncate(s.Text(text), previewChars),
	}
}

func init() {
	segmentCmd.Flags().String("type", "", "document type whose config overrides apply")
	segmentCmd.Flags().String("domain", "", "domain for config overrides")
	rootCmd.AddCommand(segmentCmd)
}

package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/edugest/internal/doctree"
)

// csvBatchSize rows share one section so question banks stay grouped.
const csvBatchSize = 20

// CSVDecoder handles CSV files such as exported question banks.
type CSVDecoder struct{}

func (p *CSVDecoder) Decode(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		for _, row := range dataRows[i:end] {
			fields := make([]string, 0, len(row))
			for j, cell := range row {
				if strings.TrimSpace(cell) == "" {
					continue
				}
				if j < len(headers) && headers[j] != "" {
					fields = append(fields, headers[j]+": "+cell)
				} else {
					fields = append(fields, cell)
				}
			}
			if len(fields) > 0 {
				text.WriteString(strings.Join(fields, "; "))
				text.WriteString("\n")
			}
		}

		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, skip header
			Text:  text.String(),
		})
	}
	return tree, nil
}

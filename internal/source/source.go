// Package source decodes uploaded files into the plain text the extraction
// pipeline consumes. Binary formats go through a heading tree first so the
// rendered text keeps section headings as Markdown lines.
package source

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/edugest/internal/doctree"
)

// Format hints.
const (
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatCSV      = "csv"
	FormatText     = "text"
)

// SourceDocument is one decoded upload, consumed once per run.
type SourceDocument struct {
	Text          string `json:"-"`
	FileName      string `json:"file_name"`
	Format        string `json:"format"`
	PageCount     int    `json:"page_count,omitempty"`
	DeclaredType  string `json:"declared_type,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Domain        string `json:"domain,omitempty"`
}

// Decoder converts raw document bytes into a heading tree.
type Decoder interface {
	Decode(r io.Reader, filename string) (*doctree.DocTree, error)
}

var decoders = map[string]struct {
	format  string
	decoder func() Decoder
}{
	".txt":      {FormatText, func() Decoder { return &TextDecoder{} }},
	".text":     {FormatText, func() Decoder { return &TextDecoder{} }},
	".md":       {FormatMarkdown, func() Decoder { return &MarkdownDecoder{} }},
	".markdown": {FormatMarkdown, func() Decoder { return &MarkdownDecoder{} }},
	".csv":      {FormatCSV, func() Decoder { return &CSVDecoder{} }},
	".html":     {FormatHTML, func() Decoder { return &HTMLDecoder{} }},
	".htm":      {FormatHTML, func() Decoder { return &HTMLDecoder{} }},
	".pdf":      {FormatPDF, func() Decoder { return &PDFDecoder{FallbackPdftotext: true} }},
	".docx":     {FormatDOCX, func() Decoder { return &DOCXDecoder{} }},
}

// ForFile returns the decoder and format hint for a filename.
func ForFile(filename string) (Decoder, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	d, ok := decoders[ext]
	if !ok {
		return nil, "", fmt.Errorf("unsupported file extension: %q", ext)
	}
	return d.decoder(), d.format, nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Load decodes r according to the filename's extension.
func Load(r io.Reader, filename string) (*SourceDocument, error) {
	dec, format, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	tree, err := dec.Decode(r, filename)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return &SourceDocument{
		Text:      tree.Render(),
		FileName:  filename,
		Format:    format,
		PageCount: tree.PageCount(),
	}, nil
}

// LoadBytes is Load over an in-memory upload.
func LoadBytes(data []byte, filename string) (*SourceDocument, error) {
	return Load(bytes.NewReader(data), filename)
}

func baseTitle(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

// Package doctext renders downloaded report documents to plain text for
// pattern extraction.
package doctext

import (
	"context"

	"github.com/rotisserie/eris"
)

// Renderer renders a document file to text.
type Renderer interface {
	RenderText(ctx context.Context, path string) (string, error)
}

// Config selects and configures a renderer backend.
type Config struct {
	Backend       string // "pdftotext" or ""
	PdfToTextPath string
}

// NewRenderer creates a Renderer based on config.
func NewRenderer(cfg Config) (Renderer, error) {
	switch cfg.Backend {
	case "pdftotext", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("doctext: unknown backend %q", cfg.Backend)
	}
}

package doctext

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText renders PDF reports using the pdftotext CLI tool. The -layout
// flag preserves column alignment, which the extraction patterns rely on for
// label/value pairs in factsheet tables.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText renderer. If binPath is empty, "pdftotext"
// is resolved from PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// RenderText runs pdftotext -layout on the given PDF and returns stdout.
func (p *PdfToText) RenderText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "doctext: pdftotext failed for %s: %s", path, stderr.String())
	}
	return stdout.String(), nil
}

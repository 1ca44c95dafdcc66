// Package download acquires report artifacts from a navigable session and
// stores them under deterministic, period-stamped paths.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// Failure kinds for DownloadError.
const (
	KindTimeout  = "timeout"
	KindNotFound = "not_found"
)

// DownloadError reports that an artifact was never located or never
// completed within its timeout. Both kinds are recoverable per fund.
type DownloadError struct {
	Kind   string
	Detail string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download: %s: %s", e.Kind, e.Detail)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Request describes one artifact acquisition.
type Request struct {
	Provider     string
	MaturityYear int
	Period       model.Period
	Ext          string
	// Triggers locate the downloadable-artifact link, tried in order.
	Triggers []browse.Locator
	// Validate optionally inspects fetched content before it is accepted. A
	// candidate failing validation is skipped and the cascade continues.
	Validate func(ctx context.Context, content []byte) error
}

// ArtifactPath returns the deterministic storage path for a request.
func ArtifactPath(outputDir string, req Request) string {
	name := fmt.Sprintf("%s_%d_report_%s.%s",
		req.Provider, req.MaturityYear, req.Period.FileStamp(), req.Ext)
	return filepath.Join(outputDir, name)
}

// Acquirer downloads report artifacts for one session.
type Acquirer struct {
	session   browse.Session
	outputDir string
}

// NewAcquirer creates an acquirer writing under outputDir.
func NewAcquirer(session browse.Session, outputDir string) *Acquirer {
	return &Acquirer{session: session, outputDir: outputDir}
}

// Acquire locates the artifact through the trigger cascade, fetches it, and
// persists it at the deterministic path for the request's period. A retry
// for the same period overwrites its own prior artifact and nothing else.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for _, trigger := range req.Triggers {
		el, err := a.session.Locate(ctx, trigger)
		if err != nil {
			lastErr = err
			continue
		}
		if el == nil {
			continue
		}
		href, ok := el.Attr("href")
		if !ok || href == "" {
			continue
		}

		content, err := a.session.Download(ctx, href)
		if err != nil {
			zap.L().Debug("download: candidate fetch failed, trying next trigger",
				zap.Stringer("trigger", trigger),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if req.Ext == "pdf" && !bytes.HasPrefix(content, []byte("%PDF")) {
			zap.L().Debug("download: candidate is not a PDF, trying next trigger",
				zap.Stringer("trigger", trigger),
			)
			lastErr = eris.New("candidate content is not a PDF")
			continue
		}

		if req.Validate != nil {
			if err := req.Validate(ctx, content); err != nil {
				zap.L().Debug("download: candidate failed validation, trying next trigger",
					zap.Stringer("trigger", trigger),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
		}

		path := ArtifactPath(a.outputDir, req)
		if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
			return "", eris.Wrap(err, "download: create output dir")
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return "", eris.Wrapf(err, "download: write %s", path)
		}

		zap.L().Info("download: artifact stored",
			zap.String("path", path),
			zap.Int("bytes", len(content)),
		)
		return path, nil
	}

	if lastErr != nil && errors.Is(lastErr, context.DeadlineExceeded) {
		return "", &DownloadError{Kind: KindTimeout, Detail: "artifact fetch timed out", Err: lastErr}
	}
	detail := fmt.Sprintf("no usable artifact via %d triggers", len(req.Triggers))
	return "", &DownloadError{Kind: KindNotFound, Detail: detail, Err: lastErr}
}

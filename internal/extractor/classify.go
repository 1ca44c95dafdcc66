package extractor

import (
	"errors"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/consent"
	"github.com/sells-group/ytm-tracker/internal/download"
	"github.com/sells-group/ytm-tracker/internal/match"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// classify maps an extraction error onto the failure taxonomy. Anything
// outside the five known kinds is internal; the orchestrator treats all of
// them the same way, the kind only feeds reporting.
func classify(err error) model.FailureKind {
	var (
		navErr  *browse.NavigationError
		gateErr *consent.GateError
		dlErr   *download.DownloadError
		parsErr *match.ParseError
	)
	switch {
	case errors.As(err, &navErr):
		return model.FailureNavigation
	case errors.As(err, &gateErr):
		return model.FailureGate
	case errors.As(err, &dlErr):
		return model.FailureDownload
	case errors.Is(err, match.ErrNoMatch):
		return model.FailureNoMatch
	case errors.As(err, &parsErr):
		return model.FailureParse
	default:
		return model.FailureInternal
	}
}

// Package model defines the core data types shared across the extraction pipeline.
package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ValueSource identifies where a fund's YTM value is read from.
type ValueSource string

const (
	SourceLiveMarkup ValueSource = "live_markup"
	SourceDocument   ValueSource = "document"
)

// Outcome is the terminal state of a single extraction attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureKind classifies why an extraction attempt failed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureNavigation FailureKind = "navigation"
	FailureGate       FailureKind = "gate_resolution"
	FailureDownload   FailureKind = "download"
	FailureNoMatch    FailureKind = "no_match"
	FailureParse      FailureKind = "parse"
	FailureInternal   FailureKind = "internal"
)

// Period is a reporting period: a calendar month canonicalized to its first day.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod accepts "YYYY-MM" or "YYYY-MM-DD" (the day is discarded).
func ParsePeriod(s string) (Period, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: t.Month()}, nil
		}
	}
	return Period{}, eris.Errorf("invalid period %q, want YYYY-MM", s)
}

// CurrentPeriod returns the period for the current month in UTC.
func CurrentPeriod() Period {
	now := time.Now().UTC()
	return Period{Year: now.Year(), Month: now.Month()}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Date returns the canonical first-of-month date in UTC.
func (p Period) Date() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	d := p.Date().AddDate(0, -1, 0)
	return Period{Year: d.Year(), Month: d.Month()}
}

// String renders the canonical form, e.g. "2025-11-01".
func (p Period) String() string {
	return p.Date().Format("2006-01-02")
}

// FileStamp renders the compact form used in artifact names, e.g. "202511".
func (p Period) FileStamp() string {
	return p.Date().Format("200601")
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	return p.Date().Before(other.Date())
}

// ExtractionResult is the outcome of one extraction attempt for one fund.
// It is immutable after construction and is the only thing an extractor
// ever hands back; failures ride inside it rather than as returned errors.
type ExtractionResult struct {
	FundID        string      `json:"fund_id"`
	Period        Period      `json:"period"`
	Value         *float64    `json:"value,omitempty"`
	SourceKind    ValueSource `json:"source_kind"`
	DocumentRef   string      `json:"document_ref,omitempty"`
	ExtractedAt   time.Time   `json:"extracted_at"`
	Outcome       Outcome     `json:"outcome"`
	FailureKind   FailureKind `json:"failure_kind,omitempty"`
	FailureDetail string      `json:"failure_detail,omitempty"`
}

// Succeeded reports whether the attempt produced a usable value.
func (r ExtractionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// HistoricalRecord is the persisted row for a (fund, period) pair. It carries
// a snapshot of the fund registry metadata at extraction time so stored rows
// stay interpretable even if the registry changes later.
type HistoricalRecord struct {
	ID             string      `json:"id"`
	FundID         string      `json:"fund_id"`
	DisplayName    string      `json:"display_name"`
	Provider       string      `json:"provider"`
	IdentifierCode string      `json:"identifier_code,omitempty"`
	MaturityYear   int         `json:"maturity_year"`
	SourceURL      string      `json:"source_url"`
	Period         Period      `json:"period"`
	Value          float64     `json:"value"`
	SourceKind     ValueSource `json:"source_kind"`
	DocumentRef    string      `json:"document_ref,omitempty"`
	ExtractedAt    time.Time   `json:"extracted_at"`
}

// Label is a short human-readable identity for log lines and summaries.
func (r HistoricalRecord) Label() string {
	return fmt.Sprintf("%s (%d)", r.DisplayName, r.MaturityYear)
}

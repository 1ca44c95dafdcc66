// Package extractor orchestrates one fund's YTM acquisition: navigate,
// resolve the consent gate, obtain text from live markup or a downloaded
// report, and run the extraction cascade.
package extractor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/consent"
	"github.com/sells-group/ytm-tracker/internal/doctext"
	"github.com/sells-group/ytm-tracker/internal/download"
	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/match"
	"github.com/sells-group/ytm-tracker/internal/model"
)

// Extractor extracts one fund's YTM for a reporting period. Failures are
// carried inside the result, never returned: one fund's trouble must not be
// able to abort a run.
type Extractor interface {
	Fund() fund.Config
	Extract(ctx context.Context, period model.Period) model.ExtractionResult
}

// Options carries the shared extractor configuration.
type Options struct {
	OutputDir    string
	GateTimeout  time.Duration
	CloseTimeout time.Duration
}

// Deps are the collaborators every extractor needs.
type Deps struct {
	Sessions browse.Factory
	Renderer doctext.Renderer
}

// FundExtractor is the single orchestration body shared by all providers.
// Provider variance lives in the Profile, injected as data.
type FundExtractor struct {
	cfg     fund.Config
	profile Profile
	deps    Deps
	opts    Options
	now     func() time.Time
}

// New creates an extractor for the given fund, resolving its provider
// profile.
func New(cfg fund.Config, deps Deps, opts Options) (*FundExtractor, error) {
	profile, err := ProfileFor(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return &FundExtractor{
		cfg:     cfg,
		profile: profile,
		deps:    deps,
		opts:    opts,
		now:     time.Now,
	}, nil
}

// WithProfile overrides the provider profile (used by tests).
func (e *FundExtractor) WithProfile(p Profile) *FundExtractor {
	e.profile = p
	return e
}

// WithNow sets a fixed clock (used by tests).
func (e *FundExtractor) WithNow(now func() time.Time) *FundExtractor {
	e.now = now
	return e
}

// Fund returns the fund this extractor serves.
func (e *FundExtractor) Fund() fund.Config {
	return e.cfg
}

// Extract runs the full acquisition for one period. A zero period defaults
// to the current month. There are no internal retries beyond the locator
// cascades; retrying the whole call belongs to the orchestrator.
func (e *FundExtractor) Extract(ctx context.Context, period model.Period) model.ExtractionResult {
	if period.IsZero() {
		period = model.CurrentPeriod()
	}

	zap.L().Info("extract: starting",
		zap.String("fund", e.cfg.FundID),
		zap.String("period", period.String()),
	)

	value, docRef, err := e.run(ctx, period)
	if err != nil {
		kind := classify(err)
		zap.L().Warn("extract: failed",
			zap.String("fund", e.cfg.FundID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return model.ExtractionResult{
			FundID:        e.cfg.FundID,
			Period:        period,
			SourceKind:    e.cfg.ValueSource,
			DocumentRef:   docRef,
			ExtractedAt:   e.now().UTC(),
			Outcome:       model.OutcomeFailure,
			FailureKind:   kind,
			FailureDetail: err.Error(),
		}
	}

	zap.L().Info("extract: succeeded",
		zap.String("fund", e.cfg.FundID),
		zap.Float64("ytm", value),
	)
	return model.ExtractionResult{
		FundID:      e.cfg.FundID,
		Period:      period,
		Value:       &value,
		SourceKind:  e.cfg.ValueSource,
		DocumentRef: docRef,
		ExtractedAt: e.now().UTC(),
		Outcome:     model.OutcomeSuccess,
	}
}

func (e *FundExtractor) run(ctx context.Context, period model.Period) (value float64, docRef string, err error) {
	session, err := e.deps.Sessions.NewSession(ctx, browse.SessionOptions{
		Cookies: e.profile.Cookies,
	})
	if err != nil {
		return 0, "", eris.Wrap(err, "open session")
	}
	defer session.Close()

	if err := session.Goto(ctx, e.cfg.SourceURL); err != nil {
		return 0, "", err
	}

	resolver := consent.NewResolver(session, consent.Config{
		GateLocators: e.profile.GateLocators,
		Steps:        e.profile.ConsentSteps,
		GateTimeout:  e.opts.GateTimeout,
		CloseTimeout: e.opts.CloseTimeout,
	})
	if err := resolver.Resolve(ctx); err != nil {
		return 0, "", err
	}

	var text string
	switch e.cfg.ValueSource {
	case model.SourceDocument:
		text, docRef, err = e.obtainDocumentText(ctx, session, period)
		if err != nil {
			return 0, docRef, err
		}
	default:
		text, err = session.RenderText(ctx)
		if err != nil {
			return 0, "", eris.Wrap(err, "render page text")
		}
	}

	value, m, err := match.FirstValue(text, e.profile.Patterns)
	if err != nil {
		return 0, docRef, err
	}
	zap.L().Debug("extract: pattern matched",
		zap.String("fund", e.cfg.FundID),
		zap.String("pattern", m.Pattern),
		zap.String("raw", m.Raw),
	)
	return value, docRef, nil
}

func (e *FundExtractor) obtainDocumentText(ctx context.Context, session browse.Session, period model.Period) (string, string, error) {
	e.navigateToSection(ctx, session)
	e.selectLatestPeriod(ctx, session)

	acquirer := download.NewAcquirer(session, e.opts.OutputDir)
	path, err := acquirer.Acquire(ctx, download.Request{
		Provider:     string(e.cfg.Provider),
		MaturityYear: e.cfg.MaturityYear,
		Period:       period,
		Ext:          e.profile.DocumentExt,
		Triggers:     e.profile.DownloadTriggers,
		Validate:     e.contentValidator(period),
	})
	if err != nil {
		return "", "", err
	}

	text, err := e.deps.Renderer.RenderText(ctx, path)
	if err != nil {
		return "", path, eris.Wrap(err, "render document text")
	}
	return text, path, nil
}

// navigateToSection moves to the provider's reporting section. Absence is a
// warning, not a failure: the landing page may already hold the links.
func (e *FundExtractor) navigateToSection(ctx context.Context, session browse.Session) {
	if len(e.profile.SectionLocators) == 0 {
		return
	}
	for _, loc := range e.profile.SectionLocators {
		el, err := session.Locate(ctx, loc)
		if err != nil || el == nil {
			continue
		}
		if err := session.Act(ctx, el, browse.Action{Capability: browse.Click}); err == nil {
			zap.L().Debug("extract: reporting section opened", zap.Stringer("locator", loc))
			return
		}
	}
	zap.L().Warn("extract: reporting section not found, staying on current page",
		zap.String("fund", e.cfg.FundID),
	)
}

// selectLatestPeriod picks the most recent entry in an optional
// period-selection control. The control's first entry in native ordering is
// assumed to be the most recent; revisit if a provider ever sorts ascending.
func (e *FundExtractor) selectLatestPeriod(ctx context.Context, session browse.Session) {
	for _, loc := range e.profile.PeriodControl {
		el, err := session.Locate(ctx, loc)
		if err != nil || el == nil {
			continue
		}
		err = session.Act(ctx, el, browse.Action{Capability: browse.SelectOption})
		if err != nil {
			zap.L().Debug("extract: period control select failed", zap.Error(err))
			continue
		}
		return
	}
}

// contentValidator rejects artifacts that are not this fund's monthly report
// for the target period, so the trigger cascade moves on to the next
// candidate instead of storing the wrong document.
func (e *FundExtractor) contentValidator(period model.Period) func(context.Context, []byte) error {
	return func(ctx context.Context, content []byte) error {
		text, err := e.renderBytes(ctx, content)
		if err != nil {
			return err
		}

		checks := download.ReportChecks{
			FundName: e.cfg.DisplayName,
			NameHint: e.profile.NameHint,
			ISIN:     e.cfg.IdentifierCode,
		}
		if e.profile.CheckMonthName {
			checks.Period = period
		}
		if err := download.CheckReport(text, checks); err != nil {
			return err
		}

		if len(e.profile.DatePatterns) > 0 {
			return e.checkDocumentCurrency(text, period)
		}
		return nil
	}
}

// renderBytes runs the document renderer over in-flight content via a
// temporary file, since renderers operate on paths.
func (e *FundExtractor) renderBytes(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ytm-candidate-*."+e.profile.DocumentExt)
	if err != nil {
		return "", eris.Wrap(err, "create temp artifact")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", eris.Wrap(err, "write temp artifact")
	}
	tmp.Close()

	return e.deps.Renderer.RenderText(ctx, tmp.Name())
}

// checkDocumentCurrency extracts the factsheet date from the text and
// verifies it belongs to the target period. The last day of the previous
// month is accepted: providers stamp month-end reports that way.
func (e *FundExtractor) checkDocumentCurrency(text string, period model.Period) error {
	var stamped time.Time
	found := false
	for _, re := range e.profile.DatePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		stamped = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if stamped.Day() != day || int(stamped.Month()) != month {
			return eris.Errorf("implausible factsheet date %s", m[0])
		}
		found = true
		break
	}
	if !found {
		return eris.New("no factsheet date found in document")
	}

	if model.PeriodOf(stamped) == period {
		return nil
	}
	if model.PeriodOf(stamped) == period.Prev() {
		if stamped.AddDate(0, 0, 1).Month() != stamped.Month() {
			return nil
		}
	}
	return fmt.Errorf("document not current: stamped %s, want period %s",
		stamped.Format("02/01/2006"), period)
}

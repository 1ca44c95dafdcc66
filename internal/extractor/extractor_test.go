package extractor

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/consent"
	"github.com/sells-group/ytm-tracker/internal/download"
	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/match"
	"github.com/sells-group/ytm-tracker/internal/model"
)

type fakeElement struct {
	text  string
	attrs map[string]string
}

func (e *fakeElement) Text() string { return e.text }

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

type fakeSession struct {
	gotoErr   error
	pageText  string
	elements  map[string]browse.Element
	downloads map[string][]byte
	visited   []string
}

func (s *fakeSession) Goto(ctx context.Context, u string) error {
	if s.gotoErr != nil {
		return s.gotoErr
	}
	s.visited = append(s.visited, u)
	return nil
}

func (s *fakeSession) Locate(ctx context.Context, loc browse.Locator) (browse.Element, error) {
	return s.elements[loc.String()], nil
}

func (s *fakeSession) Act(ctx context.Context, el browse.Element, action browse.Action) error {
	return nil
}

func (s *fakeSession) Download(ctx context.Context, ref string) ([]byte, error) {
	content, ok := s.downloads[ref]
	if !ok {
		return nil, eris.Errorf("unexpected download ref %s", ref)
	}
	return content, nil
}

func (s *fakeSession) RenderText(ctx context.Context) (string, error) { return s.pageText, nil }
func (s *fakeSession) BaseURL() *url.URL                              { return nil }
func (s *fakeSession) Close() error                                   { return nil }

type fakeFactory struct {
	session *fakeSession
	err     error
}

func (f *fakeFactory) NewSession(ctx context.Context, opts browse.SessionOptions) (browse.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

// fileRenderer returns the artifact's own bytes as its rendered text.
type fileRenderer struct{}

func (fileRenderer) RenderText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func testOptions(t *testing.T) Options {
	return Options{
		OutputDir:    t.TempDir(),
		GateTimeout:  10 * time.Millisecond,
		CloseTimeout: 10 * time.Millisecond,
	}
}

func liveFund() fund.Config {
	return fund.Config{
		FundID:       "carmignac_2027",
		Provider:     fund.ProviderCarmignac,
		DisplayName:  "Carmignac Crédit 2027",
		MaturityYear: 2027,
		SourceURL:    "https://example.com/credit-2027",
		ValueSource:  model.SourceLiveMarkup,
	}
}

func documentFund() fund.Config {
	return fund.Config{
		FundID:         "sycomore_2030",
		Provider:       fund.ProviderSycomore,
		DisplayName:    "Sycoyield 2030",
		IdentifierCode: "FR001400MCQ6",
		MaturityYear:   2030,
		SourceURL:      "https://example.com/sycoyield-2030",
		ValueSource:    model.SourceDocument,
	}
}

func march() model.Period {
	return model.Period{Year: 2026, Month: time.March}
}

func TestExtractLiveMarkup(t *testing.T) {
	session := &fakeSession{pageText: "Fund metrics\nYield to Maturity: 3,06%\n"}
	ex, err := New(liveFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	require.True(t, res.Succeeded(), "failure: %s", res.FailureDetail)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 3.06, *res.Value, 1e-9)
	assert.Equal(t, model.SourceLiveMarkup, res.SourceKind)
	assert.Equal(t, march(), res.Period)
	assert.Equal(t, []string{"https://example.com/credit-2027"}, session.visited)
}

func TestExtractDocument(t *testing.T) {
	report := []byte("%PDF-1.4\nSycoyield 2030\nReporting mensuel mars 2026\nRendement à maturité** 4,9%\n")
	trigger := browse.ByText("a", "Voir le dernier reporting")
	session := &fakeSession{
		elements: map[string]browse.Element{
			trigger.String(): &fakeElement{attrs: map[string]string{"href": "/telecharger/reporting/187"}},
		},
		downloads: map[string][]byte{"/telecharger/reporting/187": report},
	}

	ex, err := New(documentFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	require.True(t, res.Succeeded(), "failure: %s", res.FailureDetail)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 4.9, *res.Value, 1e-9)
	assert.Equal(t, model.SourceDocument, res.SourceKind)
	assert.NotEmpty(t, res.DocumentRef)

	// The artifact landed at its period-stamped path.
	content, err := os.ReadFile(res.DocumentRef)
	require.NoError(t, err)
	assert.Equal(t, report, content)
}

func TestExtractNoMatch(t *testing.T) {
	session := &fakeSession{pageText: "nothing measurable on this page"}
	ex, err := New(liveFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	assert.False(t, res.Succeeded())
	assert.Equal(t, model.FailureNoMatch, res.FailureKind)
	assert.Nil(t, res.Value)
}

func TestExtractNavigationFailure(t *testing.T) {
	session := &fakeSession{
		gotoErr: &browse.NavigationError{URL: "https://example.com", Err: eris.New("http 503")},
	}
	ex, err := New(liveFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	assert.False(t, res.Succeeded())
	assert.Equal(t, model.FailureNavigation, res.FailureKind)
}

func TestExtractGateFailure(t *testing.T) {
	gate := browse.CSS("#modal")
	session := &fakeSession{
		elements: map[string]browse.Element{
			gate.String(): &fakeElement{text: "gate"},
		},
	}
	ex, err := New(liveFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	ex.WithProfile(Profile{
		GateLocators: []browse.Locator{gate},
		ConsentSteps: []consent.Step{
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{browse.CSS("#gone")}},
		},
		Patterns: []match.Pattern{match.MustPattern("ytm", `YTM: ([\d,]+)%`)},
	})

	res := ex.Extract(context.Background(), march())
	assert.False(t, res.Succeeded())
	assert.Equal(t, model.FailureGate, res.FailureKind)
}

func TestExtractNoDownloadTriggerMatches(t *testing.T) {
	ex, err := New(documentFund(), Deps{
		Sessions: &fakeFactory{session: &fakeSession{}},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	assert.False(t, res.Succeeded())
	assert.Equal(t, model.FailureDownload, res.FailureKind)
}

func TestExtractRejectsKIIDAndCascades(t *testing.T) {
	kiid := []byte("%PDF-1.4\nDocument d'informations clés\nSycoyield 2030\n")
	report := []byte("%PDF-1.4\nSycoyield 2030 mars 2026\nRendement à maturité 4,9%\n")
	first := browse.ByText("a", "Voir le dernier reporting")
	second := browse.ByAttr("a", "href", "/telecharger/reporting/")
	session := &fakeSession{
		elements: map[string]browse.Element{
			first.String():  &fakeElement{attrs: map[string]string{"href": "/kiid.pdf"}},
			second.String(): &fakeElement{attrs: map[string]string{"href": "/report.pdf"}},
		},
		downloads: map[string][]byte{
			"/kiid.pdf":   kiid,
			"/report.pdf": report,
		},
	}

	ex, err := New(documentFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), march())
	require.True(t, res.Succeeded(), "failure: %s", res.FailureDetail)
	assert.InDelta(t, 4.9, *res.Value, 1e-9)

	content, err := os.ReadFile(res.DocumentRef)
	require.NoError(t, err)
	assert.Equal(t, report, content)
}

func TestExtractDefaultsToCurrentPeriod(t *testing.T) {
	session := &fakeSession{pageText: "Yield to Maturity: 3,06%"}
	ex, err := New(liveFund(), Deps{
		Sessions: &fakeFactory{session: session},
		Renderer: fileRenderer{},
	}, testOptions(t))
	require.NoError(t, err)

	res := ex.Extract(context.Background(), model.Period{})
	require.True(t, res.Succeeded())
	assert.Equal(t, model.CurrentPeriod(), res.Period)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.FailureKind
	}{
		{"navigation", &browse.NavigationError{URL: "u", Err: eris.New("x")}, model.FailureNavigation},
		{"gate", &consent.GateError{Step: "accept", Err: eris.New("x")}, model.FailureGate},
		{"wrapped navigation", eris.Wrap(&browse.NavigationError{URL: "u", Err: eris.New("x")}, "open page"), model.FailureNavigation},
		{"download", &download.DownloadError{Kind: download.KindNotFound, Detail: "no artifact"}, model.FailureDownload},
		{"no match", match.ErrNoMatch, model.FailureNoMatch},
		{"parse", &match.ParseError{Input: "x", Reason: "no digit sequence"}, model.FailureParse},
		{"unknown", eris.New("disk full"), model.FailureInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

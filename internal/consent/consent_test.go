package consent

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ytm-tracker/internal/browse"
)

type fakeElement struct {
	text string
	attr map[string]string
}

func (e *fakeElement) Text() string { return e.text }

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attr[name]
	return v, ok
}

// fakeSession resolves locators against a fixed table and records actions.
// Acting on an element listed in dismissing hides the gate afterwards.
type fakeSession struct {
	elements   map[string]browse.Element
	locateErrs map[string]error
	actErr     map[browse.Element]error
	gateKey    string
	gateOpen   bool
	dismissing map[browse.Element]bool
	actions    []browse.Action
}

func (s *fakeSession) Goto(ctx context.Context, u string) error { return nil }

func (s *fakeSession) Locate(ctx context.Context, loc browse.Locator) (browse.Element, error) {
	key := loc.String()
	if err, ok := s.locateErrs[key]; ok {
		return nil, err
	}
	if key == s.gateKey {
		if s.gateOpen {
			return &fakeElement{text: "gate"}, nil
		}
		return nil, nil
	}
	return s.elements[key], nil
}

func (s *fakeSession) Act(ctx context.Context, el browse.Element, action browse.Action) error {
	if err, ok := s.actErr[el]; ok {
		return err
	}
	s.actions = append(s.actions, action)
	if s.dismissing[el] {
		s.gateOpen = false
	}
	return nil
}

func (s *fakeSession) Download(ctx context.Context, ref string) ([]byte, error) { return nil, nil }
func (s *fakeSession) RenderText(ctx context.Context) (string, error)           { return "", nil }
func (s *fakeSession) BaseURL() *url.URL                                        { return nil }
func (s *fakeSession) Close() error                                             { return nil }

func fastConfig(cfg Config) Config {
	cfg.GateTimeout = 10 * time.Millisecond
	cfg.CloseTimeout = 10 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	return cfg
}

func TestResolveNoGateConfigured(t *testing.T) {
	r := NewResolver(&fakeSession{}, fastConfig(Config{}))
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
}

func TestResolveGateAbsent(t *testing.T) {
	// Gate locators configured but nothing on the page matches, as when a
	// preset cookie already dismissed the dialog. Steps must not run.
	gate := browse.CSS("#modal")
	session := &fakeSession{gateKey: gate.String(), gateOpen: false}

	r := NewResolver(session, fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{browse.CSS("#missing")}},
		},
	}))
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
	assert.Empty(t, session.actions)
}

func TestResolveIsIdempotent(t *testing.T) {
	gate := browse.CSS("#modal")
	accept := browse.CSS("#accept")
	btn := &fakeElement{text: "Accept"}
	session := &fakeSession{
		gateKey:    gate.String(),
		gateOpen:   true,
		elements:   map[string]browse.Element{accept.String(): btn},
		dismissing: map[browse.Element]bool{btn: true},
	}

	cfg := fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{accept}},
		},
	})

	r := NewResolver(session, cfg)
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
	assert.Len(t, session.actions, 1)

	// Second resolution on the same session: gate already dismissed.
	r2 := NewResolver(session, cfg)
	require.NoError(t, r2.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r2.State())
	assert.Len(t, session.actions, 1)
}

func TestResolveThirdLocatorFallback(t *testing.T) {
	gate := browse.CSS("#modal")
	first := browse.CSS("#gone-button")
	second := browse.ByText("button", "Souscrire")
	third := browse.ByAttr("button", "data-action", "accept")
	btn := &fakeElement{text: "Accept"}

	session := &fakeSession{
		gateKey:  gate.String(),
		gateOpen: true,
		locateErrs: map[string]error{
			first.String(): eris.New("engine hiccup"),
		},
		elements:   map[string]browse.Element{third.String(): btn},
		dismissing: map[browse.Element]bool{btn: true},
	}

	r := NewResolver(session, fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{first, second, third}},
		},
	}))
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
	assert.Len(t, session.actions, 1)
}

func TestResolveRequiredStepFails(t *testing.T) {
	gate := browse.CSS("#modal")
	session := &fakeSession{gateKey: gate.String(), gateOpen: true}

	r := NewResolver(session, fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "accept terms", Required: true,
				Locators: []browse.Locator{browse.CSS("#a"), browse.CSS("#b")}},
		},
	}))
	err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, r.State())

	var gerr *GateError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "accept terms", gerr.Step)
}

func TestResolveOptionalStepSkipped(t *testing.T) {
	gate := browse.CSS("#modal")
	accept := browse.CSS("#accept")
	btn := &fakeElement{text: "Accept"}
	session := &fakeSession{
		gateKey:    gate.String(),
		gateOpen:   true,
		elements:   map[string]browse.Element{accept.String(): btn},
		dismissing: map[browse.Element]bool{btn: true},
	}

	r := NewResolver(session, fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "cookie banner", Required: false,
				Locators: []browse.Locator{browse.CSS("#cookie-gone")}},
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{accept}},
		},
	}))
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
	assert.Len(t, session.actions, 1)
}

func TestResolveClosureNotObserved(t *testing.T) {
	// Acting succeeds but the gate never disappears. The workflow still
	// resolves; closure is informative, not load-bearing.
	gate := browse.CSS("#modal")
	accept := browse.CSS("#accept")
	btn := &fakeElement{text: "Accept"}
	session := &fakeSession{
		gateKey:  gate.String(),
		gateOpen: true,
		elements: map[string]browse.Element{accept.String(): btn},
	}

	r := NewResolver(session, fastConfig(Config{
		GateLocators: []browse.Locator{gate},
		Steps: []Step{
			{Capability: browse.Click, Target: "accept", Required: true,
				Locators: []browse.Locator{accept}},
		},
	}))
	require.NoError(t, r.Resolve(context.Background()))
	assert.Equal(t, StateResolved, r.State())
}

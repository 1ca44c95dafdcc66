// Package consent drives provider gating dialogs (jurisdiction, investor
// profile, disclaimer) against a navigable session before data is readable.
package consent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ytm-tracker/internal/browse"
)

// Step is one gating action: perform a capability on a target found through
// an ordered locator fallback cascade.
type Step struct {
	Capability browse.Capability
	Target     string // human-readable target description, used in failures
	Locators   []browse.Locator
	// Required marks steps whose failure fails the whole workflow. Optional
	// steps are skipped silently when no locator succeeds.
	Required bool
	// Option is the value passed to SelectOption capabilities.
	Option string
}

// GateError reports that a required consent step never succeeded.
type GateError struct {
	Step string
	Err  error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("consent: required step %q failed: %v", e.Step, e.Err)
}

func (e *GateError) Unwrap() error { return e.Err }

// State is the resolver's workflow state, exposed for inspection.
type State string

const (
	StateAwaitingGate State = "awaiting_gate"
	StateResolving    State = "resolving"
	StateResolved     State = "resolved"
	StateFailed       State = "failed"
)

// Config holds the provider-specific gate description.
type Config struct {
	// GateLocators detect the presence of a gating surface. Empty means the
	// provider never gates.
	GateLocators []browse.Locator
	Steps        []Step
	// GateTimeout bounds the presence probe. Absence of a gate within it is
	// not a failure; the gate may be dismissed already (cookie) or simply
	// not exist for this session.
	GateTimeout time.Duration
	// CloseTimeout bounds the post-steps closure check. Non-closure is
	// logged, never failed: some gates only close on the next navigation.
	CloseTimeout time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.GateTimeout <= 0 {
		c.GateTimeout = 5 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

// Resolver runs one consent workflow against one session. Resolvers are not
// shared across extractions; each fund gets a fresh session and resolver so
// consent state never leaks between providers.
type Resolver struct {
	session browse.Session
	cfg     Config
	state   State
}

// NewResolver creates a resolver bound to a single session.
func NewResolver(session browse.Session, cfg Config) *Resolver {
	return &Resolver{session: session, cfg: cfg.withDefaults(), state: StateAwaitingGate}
}

// State returns the resolver's current workflow state.
func (r *Resolver) State() State {
	return r.state
}

// Resolve runs the workflow to completion. It is idempotent: a session with
// no gate present, or with the gate already dismissed, resolves immediately
// with zero step failures.
func (r *Resolver) Resolve(ctx context.Context) error {
	r.state = StateAwaitingGate

	if len(r.cfg.GateLocators) == 0 || !r.probeGate(ctx) {
		zap.L().Debug("consent: no gate present")
		r.state = StateResolved
		return nil
	}

	r.state = StateResolving
	for i, step := range r.cfg.Steps {
		if err := r.resolveStep(ctx, step); err != nil {
			if step.Required {
				r.state = StateFailed
				return &GateError{Step: step.Target, Err: err}
			}
			zap.L().Debug("consent: optional step skipped",
				zap.Int("step", i),
				zap.String("target", step.Target),
			)
			continue
		}
		zap.L().Debug("consent: step resolved",
			zap.Int("step", i),
			zap.String("target", step.Target),
		)
	}

	if !r.awaitClosure(ctx) {
		zap.L().Warn("consent: gate closure not observed, treating as resolved")
	}
	r.state = StateResolved
	return nil
}

// resolveStep tries each fallback locator in order. The first locator that
// both finds a target and performs the action succeeds the step; a failure
// on a non-final fallback never aborts the cascade.
func (r *Resolver) resolveStep(ctx context.Context, step Step) error {
	action := browse.Action{Capability: step.Capability, Option: step.Option}

	var lastErr error
	for _, loc := range step.Locators {
		el, err := r.session.Locate(ctx, loc)
		if err != nil {
			lastErr = err
			continue
		}
		if el == nil {
			continue
		}
		if err := r.session.Act(ctx, el, action); err != nil {
			zap.L().Debug("consent: locator found target but action failed, trying next",
				zap.Stringer("locator", loc),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("all %d locators failed, last: %w", len(step.Locators), lastErr)
	}
	return fmt.Errorf("no locator matched (%d tried)", len(step.Locators))
}

// probeGate reports whether any gate locator matches within GateTimeout.
func (r *Resolver) probeGate(ctx context.Context) bool {
	found, _ := r.poll(ctx, r.cfg.GateTimeout, func() bool {
		return r.gateVisible(ctx)
	})
	return found
}

// awaitClosure reports whether the gate disappeared within CloseTimeout.
func (r *Resolver) awaitClosure(ctx context.Context) bool {
	closed, _ := r.poll(ctx, r.cfg.CloseTimeout, func() bool {
		return !r.gateVisible(ctx)
	})
	return closed
}

func (r *Resolver) gateVisible(ctx context.Context) bool {
	for _, loc := range r.cfg.GateLocators {
		el, err := r.session.Locate(ctx, loc)
		if err == nil && el != nil {
			return true
		}
	}
	return false
}

// poll evaluates cond until it is true or the bounded wait expires. The
// first evaluation happens immediately so static engines never sleep.
func (r *Resolver) poll(ctx context.Context, bound time.Duration, cond func() bool) (bool, error) {
	deadline := time.Now().Add(bound)
	for {
		if cond() {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// Package browse defines the capability contract the pipeline needs from a
// navigable-session engine, plus an HTTP implementation for static and
// cookie-gated pages. Anything satisfying Session is substitutable; headless
// browser engines plug in behind the same interface.
package browse

import (
	"context"
	"fmt"
	"net/url"
)

// LocatorKind tags the strategy a Locator uses to find an element.
type LocatorKind string

const (
	LocatorCSS  LocatorKind = "css"  // raw CSS selector
	LocatorText LocatorKind = "text" // visible text substring within a tag scope
	LocatorAttr LocatorKind = "attr" // attribute value substring within a tag scope
	LocatorRole LocatorKind = "role" // ARIA role
)

// Locator is one way of finding a logical element. Provider configuration
// lists locators in priority order and callers try them until one succeeds;
// that cascade is what keeps provider markup churn out of the code.
type Locator struct {
	Kind     LocatorKind
	Selector string // CSS selector, or tag scope for text/attr kinds
	Text     string
	Attr     string
	Value    string
	Role     string
}

// CSS builds a raw CSS selector locator.
func CSS(selector string) Locator {
	return Locator{Kind: LocatorCSS, Selector: selector}
}

// ByText builds a locator matching elements under the given tag scope whose
// visible text contains text. An empty scope defaults to "a, button".
func ByText(scope, text string) Locator {
	if scope == "" {
		scope = "a, button"
	}
	return Locator{Kind: LocatorText, Selector: scope, Text: text}
}

// ByAttr builds a locator matching elements under the given tag scope whose
// attribute value contains value.
func ByAttr(scope, attr, value string) Locator {
	return Locator{Kind: LocatorAttr, Selector: scope, Attr: attr, Value: value}
}

// ByRole builds a locator matching elements with the given ARIA role.
func ByRole(role string) Locator {
	return Locator{Kind: LocatorRole, Role: role}
}

// String renders a compact form for log lines.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorText:
		return fmt.Sprintf("text(%s, %q)", l.Selector, l.Text)
	case LocatorAttr:
		return fmt.Sprintf("attr(%s, %s~=%q)", l.Selector, l.Attr, l.Value)
	case LocatorRole:
		return fmt.Sprintf("role(%s)", l.Role)
	default:
		return fmt.Sprintf("css(%s)", l.Selector)
	}
}

// Capability is an action a consent step can perform on a located element.
type Capability string

const (
	Click        Capability = "click"
	Check        Capability = "check"
	SelectOption Capability = "select_option"
)

// Action pairs a capability with its parameter (the option value for
// SelectOption).
type Action struct {
	Capability Capability
	Option     string
}

// Element is a located page element.
type Element interface {
	// Text returns the element's normalized visible text.
	Text() string
	// Attr returns the named attribute and whether it is present.
	Attr(name string) (string, bool)
}

// Session is an isolated navigable session. Sessions are scoped to a single
// fund's extraction and never shared, so consent state cannot leak between
// providers.
type Session interface {
	// Goto navigates to the given URL, bounded by the engine's navigation
	// timeout.
	Goto(ctx context.Context, url string) error

	// Locate finds the first element matching the locator. A locator that
	// matches nothing returns (nil, nil); errors are reserved for engine
	// failures.
	Locate(ctx context.Context, loc Locator) (Element, error)

	// Act performs the action on a previously located element.
	Act(ctx context.Context, el Element, action Action) error

	// Download fetches a downloadable artifact by reference, resolving
	// relative references against the session's base origin, bounded by the
	// engine's download timeout.
	Download(ctx context.Context, ref string) ([]byte, error)

	// RenderText returns the rendered text of the current page.
	RenderText(ctx context.Context) (string, error)

	// BaseURL returns the current page's URL, nil before the first Goto.
	BaseURL() *url.URL

	Close() error
}

// SessionOptions carries per-extraction session setup.
type SessionOptions struct {
	// Cookies are injected before the first navigation. Some providers'
	// gates are dismissed entirely by a preset profile cookie.
	Cookies []Cookie
}

// Cookie is an engine-independent cookie value.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Factory creates isolated sessions, one per fund extraction.
type Factory interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// NavigationError reports that a session could not reach a source URL.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("browse: navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

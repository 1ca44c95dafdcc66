package browse

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EngineConfig configures the HTTP session engine.
type EngineConfig struct {
	NavigationTimeout time.Duration
	DownloadTimeout   time.Duration
	UserAgent         string
	// RequestsPerSecond throttles all sessions of one engine so a run over
	// several funds of the same provider stays polite. Zero disables it.
	RequestsPerSecond float64
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// HTTPEngine is a Factory backed by plain HTTP fetches and goquery parsing.
// It handles static pages and cookie-gated pages; it does not execute
// scripts, so providers that require a real browser need a different engine
// behind the same Session interface.
type HTTPEngine struct {
	cfg     EngineConfig
	limiter *rate.Limiter
}

// NewHTTPEngine creates an HTTP session engine.
func NewHTTPEngine(cfg EngineConfig) *HTTPEngine {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &HTTPEngine{cfg: cfg, limiter: limiter}
}

// NewSession creates an isolated session with its own cookie jar.
func (e *HTTPEngine) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	client := resty.New().
		SetTimeout(e.cfg.NavigationTimeout).
		SetHeader("User-Agent", e.cfg.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	for _, c := range opts.Cookies {
		client.SetCookie(&http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}

	return &httpSession{
		client:    client,
		limiter:   e.limiter,
		dlTimeout: e.cfg.DownloadTimeout,
	}, nil
}

type httpSession struct {
	client    *resty.Client
	limiter   *rate.Limiter
	dlTimeout time.Duration

	base *url.URL
	doc  *goquery.Document
}

func (s *httpSession) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *httpSession) Goto(ctx context.Context, target string) error {
	if err := s.wait(ctx); err != nil {
		return &NavigationError{URL: target, Err: err}
	}

	resp, err := s.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	if resp.StatusCode() >= 400 {
		return &NavigationError{URL: target, Err: eris.Errorf("status %d", resp.StatusCode())}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return &NavigationError{URL: target, Err: eris.Wrap(err, "parse document")}
	}

	s.doc = doc
	s.base = resp.RawResponse.Request.URL
	return nil
}

func (s *httpSession) Locate(_ context.Context, loc Locator) (Element, error) {
	if s.doc == nil {
		return nil, eris.New("browse: locate before navigation")
	}

	var sel *goquery.Selection
	switch loc.Kind {
	case LocatorCSS:
		sel = s.doc.Find(loc.Selector).First()
	case LocatorText:
		sel = firstWhere(s.doc.Find(loc.Selector), func(n *goquery.Selection) bool {
			return strings.Contains(normalizeText(n.Text()), loc.Text)
		})
	case LocatorAttr:
		sel = firstWhere(s.doc.Find(loc.Selector), func(n *goquery.Selection) bool {
			v, ok := n.Attr(loc.Attr)
			return ok && strings.Contains(v, loc.Value)
		})
	case LocatorRole:
		sel = s.doc.Find(`[role="` + loc.Role + `"]`).First()
	default:
		return nil, eris.Errorf("browse: unknown locator kind %q", loc.Kind)
	}

	if sel == nil || sel.Length() == 0 {
		return nil, nil
	}
	return &httpElement{sel: sel}, nil
}

func (s *httpSession) Act(ctx context.Context, el Element, action Action) error {
	he, ok := el.(*httpElement)
	if !ok || he == nil {
		return eris.New("browse: act on foreign element")
	}

	switch action.Capability {
	case Click:
		// A click on a link navigates; anything else has no server-side
		// effect in a static engine and counts as performed.
		if href, ok := he.Attr("href"); ok && href != "" {
			return s.Goto(ctx, s.resolve(href))
		}
		return nil
	case Check, SelectOption:
		// Static pages carry no script state to flip. The element exists,
		// which is all a cookie-dismissed gate needs.
		zap.L().Debug("browse: static action acknowledged",
			zap.String("capability", string(action.Capability)),
			zap.String("option", action.Option),
		)
		return nil
	default:
		return eris.Errorf("browse: unknown capability %q", action.Capability)
	}
}

func (s *httpSession) Download(ctx context.Context, ref string) ([]byte, error) {
	target := s.resolve(ref)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.dlTimeout)
	defer cancel()

	resp, err := s.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, eris.Wrapf(err, "browse: download %s", target)
	}
	if resp.StatusCode() >= 400 {
		return nil, eris.Errorf("browse: download %s: status %d", target, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (s *httpSession) RenderText(_ context.Context) (string, error) {
	if s.doc == nil {
		return "", eris.New("browse: render before navigation")
	}
	return normalizeText(s.doc.Find("body").Text()), nil
}

func (s *httpSession) BaseURL() *url.URL {
	return s.base
}

func (s *httpSession) Close() error {
	s.doc = nil
	return nil
}

// resolve makes a possibly-relative reference absolute against the session's
// base origin.
func (s *httpSession) resolve(ref string) string {
	if s.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

type httpElement struct {
	sel *goquery.Selection
}

func (e *httpElement) Text() string {
	return normalizeText(e.sel.Text())
}

func (e *httpElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func firstWhere(sel *goquery.Selection, pred func(*goquery.Selection) bool) *goquery.Selection {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

var spaceRuns = regexp.MustCompile(`[ \t\r\f]+`)

// normalizeText collapses horizontal whitespace runs while keeping line
// structure, so extraction patterns see stable spacing.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

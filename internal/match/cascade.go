// Package match locates a numeric percentage inside a text blob using an
// ordered cascade of extraction patterns, then normalizes it across locales.
package match

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// ErrNoMatch is returned when no pattern in a cascade matched the text.
// It is a recoverable, per-fund condition.
var ErrNoMatch = eris.New("match: no extraction pattern matched")

// Pattern is one entry in an extraction cascade: a compiled matcher whose
// first capture group holds the numeric text.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// MustPattern compiles an extraction pattern. The expression must contain at
// least one capture group; panics otherwise, since pattern lists are static
// provider configuration compiled at startup.
func MustPattern(name, expr string) Pattern {
	re := regexp.MustCompile(expr)
	if re.NumSubexp() < 1 {
		panic("match: pattern " + name + " has no capture group")
	}
	return Pattern{Name: name, re: re}
}

// Match is a successful cascade hit.
type Match struct {
	Pattern string // name of the pattern that matched
	Raw     string // full matched text, kept for diagnostics
	Capture string // numeric capture group
}

// First applies the patterns in order and returns the capture of the first
// one that matches. Earlier patterns encode more specific phrasings and are
// always preferred over looser fallbacks, so this is first-match-wins, never
// best-match. Returns ErrNoMatch when every pattern fails.
func First(text string, patterns []Pattern) (Match, error) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return Match{Pattern: p.Name, Raw: m[0], Capture: m[1]}, nil
	}
	return Match{}, ErrNoMatch
}

// FirstValue runs the cascade and parses the winning capture into a
// percentage value.
func FirstValue(text string, patterns []Pattern) (float64, Match, error) {
	m, err := First(text, patterns)
	if err != nil {
		return 0, Match{}, err
	}
	v, err := ParsePercent(m.Capture)
	if err != nil {
		return 0, m, err
	}
	return v, m, nil
}

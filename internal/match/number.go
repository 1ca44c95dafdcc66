package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports that a text fragment could not be converted into a
// numeric percentage value.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("match: cannot parse %q: %s", e.Input, e.Reason)
}

var (
	numberRe = regexp.MustCompile(`\d(?:[\d.,]*\d)?`)

	// A separator immediately before 1-2 trailing digits, with a digit in
	// front, is the decimal separator. Observed YTM magnitudes are single or
	// double digit percentages, so a comma is never a thousands separator in
	// that position.
	decimalCommaRe = regexp.MustCompile(`^(.*\d),(\d{1,2})$`)
	decimalPointRe = regexp.MustCompile(`^(.*\d)\.(\d{1,2})$`)
)

// ParsePercent extracts a percentage value from a text fragment that uses
// either "," or "." as the decimal separator, with an optional trailing "%".
// "4,9%" and "4.9%" both parse to 4.9. Punctuation that is not the decimal
// separator is stripped.
func ParsePercent(text string) (float64, error) {
	raw := numberRe.FindString(text)
	if raw == "" {
		return 0, &ParseError{Input: text, Reason: "no digit sequence"}
	}

	var normalized string
	if m := decimalCommaRe.FindStringSubmatch(raw); m != nil {
		normalized = stripSeparators(m[1]) + "." + m[2]
	} else if m := decimalPointRe.FindStringSubmatch(raw); m != nil {
		normalized = stripSeparators(m[1]) + "." + m[2]
	} else {
		normalized = stripSeparators(raw)
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &ParseError{Input: text, Reason: "not a number after normalization"}
	}
	return v, nil
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return -1
		}
		return r
	}, s)
}

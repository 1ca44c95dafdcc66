package download

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ytm-tracker/internal/model"
)

// ReportChecks describes what a rendered report must contain to be accepted
// as the monthly report for a fund and period.
type ReportChecks struct {
	FundName string
	// NameHint is a looser family match ("Sycoyield", "Target 202") accepted
	// when the exact fund name is absent from the report text.
	NameHint string
	ISIN     string
	// Period, when set, requires the report text to mention the month by
	// name (French or English).
	Period model.Period
}

var kiidMarkers = []string{
	"Document d'informations clés",
	"Document d'information clé",
	"KIID",
}

var isinRe = regexp.MustCompile(`ISIN[:\s]+([A-Z]{2}[A-Z0-9]{10})`)

// monthNames lists the lowercase month spellings accepted per month, French
// first, including accent-stripped variants.
var monthNames = map[time.Month][]string{
	time.January:   {"janvier", "january"},
	time.February:  {"février", "fevrier", "february"},
	time.March:     {"mars", "march"},
	time.April:     {"avril", "april"},
	time.May:       {"mai", "may"},
	time.June:      {"juin", "june"},
	time.July:      {"juillet", "july"},
	time.August:    {"août", "aout", "august"},
	time.September: {"septembre", "september"},
	time.October:   {"octobre", "october"},
	time.November:  {"novembre", "november"},
	time.December:  {"décembre", "decembre", "december"},
}

// CheckReport validates rendered report text against the expected fund and
// period. Providers publish several documents behind similar links (KIIDs,
// prospectuses, stale months); these checks keep the wrong ones out of the
// store.
func CheckReport(text string, checks ReportChecks) error {
	for _, marker := range kiidMarkers {
		if strings.Contains(text, marker) {
			return eris.New("document is a KIID/DIC, not a monthly report")
		}
	}

	if checks.ISIN != "" {
		// A report without any ISIN is accepted; a report with a different
		// ISIN is another fund's document.
		if m := isinRe.FindStringSubmatch(text); m != nil && m[1] != checks.ISIN {
			return eris.Errorf("ISIN mismatch: expected %s, found %s", checks.ISIN, m[1])
		}
	}

	if checks.FundName != "" && !strings.Contains(text, checks.FundName) {
		if checks.NameHint == "" || !strings.Contains(text, checks.NameHint) {
			return eris.Errorf("fund name %q not found in report", checks.FundName)
		}
	}

	if !checks.Period.IsZero() {
		lower := strings.ToLower(text)
		found := false
		for _, name := range monthNames[checks.Period.Month] {
			if strings.Contains(lower, name) {
				found = true
				break
			}
		}
		if !found {
			return eris.Errorf("report does not mention expected month %s %d",
				monthNames[checks.Period.Month][0], checks.Period.Year)
		}
	}

	return nil
}

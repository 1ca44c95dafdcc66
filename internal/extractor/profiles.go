package extractor

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/consent"
	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/match"
)

// Profile carries everything that varies between providers: gate shape,
// consent steps, where the report lives and what phrasing surrounds the YTM
// value. Behavior stays in the shared extractor; providers differ as data.
type Profile struct {
	GateLocators []browse.Locator
	ConsentSteps []consent.Step
	Cookies      []browse.Cookie

	// SectionLocators navigate to the reporting tab for document sources.
	// Absence is tolerated: the page may already be positioned correctly.
	SectionLocators []browse.Locator

	// PeriodControl locates an optional period-selection control.
	PeriodControl []browse.Locator

	DownloadTriggers []browse.Locator
	DocumentExt      string

	// Patterns is the extraction cascade, most specific phrasing first.
	Patterns []match.Pattern

	// DatePatterns extract the factsheet date from rendered text, used to
	// reject stale documents. Each pattern captures day, month, year.
	DatePatterns []*regexp.Regexp

	// NameHint is the loose family-name match accepted by report validation.
	NameHint string

	// CheckMonthName requires the expected month's name (FR/EN) to appear
	// in the report text.
	CheckMonthName bool
}

// ProfileFor returns the extraction profile for a provider.
func ProfileFor(p fund.Provider) (Profile, error) {
	switch p {
	case fund.ProviderCarmignac:
		return carmignacProfile, nil
	case fund.ProviderSycomore:
		return sycomoreProfile, nil
	case fund.ProviderRothschild:
		return rothschildProfile, nil
	default:
		return Profile{}, eris.Errorf("extractor: no profile for provider %q", p)
	}
}

// Selector and pattern lists below are externally dictated by each
// provider's markup and document layout; expect churn here, not in code.

var carmignacProfile = Profile{
	GateLocators: []browse.Locator{
		browse.CSS(".modal"),
		browse.CSS(`[class*="cookie-consent"]`),
		browse.ByRole("dialog"),
	},
	ConsentSteps: []consent.Step{
		{
			Capability: browse.Click,
			Target:     "accept data usage terms",
			Locators: []browse.Locator{
				browse.ByText("button", "Accept"),
				browse.ByText("button", "Accepter"),
				browse.ByText("button", "J'accepte"),
				browse.ByAttr("button", "data-testid", "accept"),
				browse.CSS(".modal button.primary"),
				browse.CSS(".cookie-consent button"),
			},
		},
		{
			Capability: browse.Click,
			Target:     "confirm investor profile",
			Locators: []browse.Locator{
				browse.ByText("button", "Continue"),
				browse.ByText("button", "Continuer"),
				browse.ByText("button", "Confirm"),
				browse.ByText("button", "Confirmer"),
			},
		},
	},
	DownloadTriggers: []browse.Locator{
		browse.ByText("a", "Monthly Factsheet"),
		browse.ByText("a", "Reporting mensuel"),
		browse.ByAttr("a", "href", "factsheet"),
		browse.ByAttr("a", "href", "reporting"),
		browse.CSS(`a[href$=".pdf"]`),
	},
	DocumentExt: "pdf",
	Patterns: []match.Pattern{
		match.MustPattern("yield_eur_label",
			`(?i)Yield to Maturity \(EUR\)[^\n%]*?([\d]+(?:[.,][\d]+)?)\s*%`),
		match.MustPattern("yield_label",
			`(?i)Yield\s+to\s+Maturity[^\n%]*?([\d]+(?:[.,][\d]+)?)\s*%`),
		match.MustPattern("french_label",
			`(?i)Rendement\s+(?:à|a)\s+maturité[^\n%]*?([\d]+(?:[.,][\d]+)?)\s*%`),
		match.MustPattern("ytm_abbrev",
			`(?i)\bYTM\b[^\n%]*?([\d]+(?:[.,][\d]+)?)\s*%`),
	},
	DatePatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)Monthly Factsheet\s*-\s*(\d{2})/(\d{2})/(\d{4})`),
		regexp.MustCompile(`(?i)Reporting mensuel\s*-\s*(\d{2})/(\d{2})/(\d{4})`),
	},
	NameHint: "Carmignac",
}

var sycomoreProfile = Profile{
	// The gate is bypassed entirely by a preset guest profile cookie; the
	// locators below only cover sessions where the cookie was rejected.
	Cookies: []browse.Cookie{
		{
			Name:   "guest_profile",
			Value:  "eyJpdiI6IkNRd3hCeFRlYTFqdXVwODc1MWd1VHc9PSIsInZhbHVlIjoiRDFhWW05UUd3dGlUT3RxblM1S1AzS0diM3IyTGNyOWJWazZXWE9iQzRPRnA1TzY1cUFEMm9WM1pvcVMyMHVXS0dXenNRNGo2V3NuekkrS0tZMzd6NWc9PSIsIm1hYyI6ImI0NWMzNTUxOTFmMjljN2ZlMDRmMDhkZTUzNzZiODRiZjA4MWQ1ZmRiZmVjZGRiMWQ3MjA0NzA1OTUyMjBlZTAiLCJ0YWciOiIifQ%3D%3D",
			Domain: ".sycomore-am.com",
			Path:   "/",
		},
	},
	GateLocators: []browse.Locator{
		browse.CSS(".modal"),
		browse.ByRole("dialog"),
	},
	ConsentSteps: []consent.Step{
		{
			Capability: browse.Click,
			Target:     "dismiss visitor profile dialog",
			Locators: []browse.Locator{
				browse.ByText("button", "Continuer"),
				browse.ByText("button", "Accepter"),
			},
		},
	},
	DownloadTriggers: []browse.Locator{
		browse.ByText("a", "Voir le dernier reporting"),
		browse.ByAttr("a", "href", "/telecharger/reporting/"),
	},
	DocumentExt: "pdf",
	Patterns: []match.Pattern{
		match.MustPattern("rendement_maturite",
			`(?i)Rendement\s+(?:à|a)\s+maturit[ée]\**\s*([\d]+[,.][\d]+)\s*%`),
		match.MustPattern("ytm_abbrev",
			`(?i)YTM\s*[:\s]+([\d]+[,.][\d]+)\s*%`),
	},
	NameHint:       "Sycoyield",
	CheckMonthName: true,
}

var rothschildProfile = Profile{
	GateLocators: []browse.Locator{
		browse.CSS("section.modal#modal_disclaimer"),
	},
	ConsentSteps: []consent.Step{
		{
			Capability: browse.Click,
			Target:     "accept cookies",
			Locators: []browse.Locator{
				browse.CSS("#onetrust-accept-btn-handler"),
				browse.ByText("button", "ACCEPT ALL COOKIES"),
				browse.ByText("button", "Autoriser tous les cookies"),
			},
		},
		{
			Capability: browse.SelectOption,
			Target:     "select country",
			Option:     "fr-fr",
			Required:   true,
			Locators: []browse.Locator{
				browse.CSS("#styled_filter_country_language"),
				browse.CSS(`ul.select-options li[rel="fr-fr"]`),
			},
		},
		{
			Capability: browse.SelectOption,
			Target:     "select investor profile",
			Option:     "professional",
			Required:   true,
			Locators: []browse.Locator{
				browse.CSS("#styled_filter_user_type"),
				browse.CSS(`ul.select-options li[rel="professional"]`),
			},
		},
		{
			Capability: browse.Check,
			Target:     "acknowledge disclaimer",
			Required:   true,
			Locators: []browse.Locator{
				browse.CSS("#i_agree"),
			},
		},
		{
			Capability: browse.Click,
			Target:     "submit disclaimer",
			Required:   true,
			Locators: []browse.Locator{
				browse.CSS("button.btnSubmit"),
			},
		},
	},
	SectionLocators: []browse.Locator{
		browse.ByText("a, button", "Reporting"),
		browse.CSS(`[data-tab="reporting"]`),
	},
	PeriodControl: []browse.Locator{
		browse.CSS("select#report_period"),
		browse.ByAttr("select", "name", "period"),
	},
	DownloadTriggers: []browse.Locator{
		browse.ByText(`a[href$=".pdf"]`, "Rapport mensuel"),
		browse.ByText(`a[href$=".pdf"]`, "Monthly report"),
		browse.ByText(`a[href$=".pdf"]`, "Mensuel"),
		browse.ByText(`a[href$=".pdf"]`, "Monthly"),
		browse.CSS(`a[href$=".pdf"]`),
	},
	DocumentExt: "pdf",
	Patterns: []match.Pattern{
		match.MustPattern("taux_actuariel_eur",
			`(?i)(?:Taux\s+actuariel|YTW)\s+EUR\s+([\d]+[,.][\d]+)`),
		match.MustPattern("yield_to_maturity",
			`(?i)(?:Yield\s+to\s+Maturity|YTM)\s*[:\s]+([\d]+[,.][\d]+)\s*%`),
		match.MustPattern("rendement_actuariel",
			`(?i)Rendement\s+(?:actuariel|à\s+maturité)\s*[:\s]+([\d]+[,.][\d]+)\s*%`),
	},
	NameHint:       "Target 202",
	CheckMonthName: true,
}

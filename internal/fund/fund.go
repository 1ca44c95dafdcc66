// Package fund loads and validates the static fund registry.
package fund

import (
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ytm-tracker/internal/model"
)

// Provider identifies which extraction profile applies to a fund.
type Provider string

const (
	ProviderCarmignac  Provider = "carmignac"
	ProviderSycomore   Provider = "sycomore"
	ProviderRothschild Provider = "rothschild"
)

// Config is the immutable descriptor for one tracked fund. The registry is
// loaded once at process start; nothing mutates it afterwards.
type Config struct {
	FundID         string            `yaml:"fund_id"`
	Provider       Provider          `yaml:"provider"`
	DisplayName    string            `yaml:"display_name"`
	IdentifierCode string            `yaml:"identifier_code"`
	MaturityYear   int               `yaml:"maturity_year"`
	SourceURL      string            `yaml:"source_url"`
	ValueSource    model.ValueSource `yaml:"value_source"`
}

// Validate rejects descriptors that indicate a broken registry. A bad entry
// is fatal for the whole run: it is the configuration that is wrong, not a
// provider's live data.
func (c Config) Validate() error {
	if c.FundID == "" {
		return eris.New("fund: missing fund_id")
	}
	switch c.Provider {
	case ProviderCarmignac, ProviderSycomore, ProviderRothschild:
	default:
		return eris.Errorf("fund %s: unknown provider %q", c.FundID, c.Provider)
	}
	switch c.ValueSource {
	case model.SourceLiveMarkup, model.SourceDocument:
	default:
		return eris.Errorf("fund %s: unknown value_source %q", c.FundID, c.ValueSource)
	}
	if c.DisplayName == "" {
		return eris.Errorf("fund %s: missing display_name", c.FundID)
	}
	if c.MaturityYear < 2000 || c.MaturityYear > 2100 {
		return eris.Errorf("fund %s: implausible maturity_year %d", c.FundID, c.MaturityYear)
	}
	u, err := url.Parse(c.SourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return eris.Errorf("fund %s: malformed source_url %q", c.FundID, c.SourceURL)
	}
	return nil
}

// Registry is the ordered set of tracked funds. Iteration order is the
// declaration order of the registry file.
type Registry struct {
	funds []Config
	byID  map[string]Config
}

// NewRegistry validates the given configs and builds a registry.
func NewRegistry(configs []Config) (*Registry, error) {
	byID := make(map[string]Config, len(configs))
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[c.FundID]; dup {
			return nil, eris.Errorf("fund: duplicate fund_id %q", c.FundID)
		}
		byID[c.FundID] = c
	}
	return &Registry{funds: configs, byID: byID}, nil
}

// LoadFile reads a YAML fund registry file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fund: read registry %s", path)
	}
	return Load(data)
}

// Load parses a YAML fund registry from raw bytes.
func Load(data []byte) (*Registry, error) {
	var doc struct {
		Funds []Config `yaml:"funds"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "fund: parse registry")
	}
	if len(doc.Funds) == 0 {
		return nil, eris.New("fund: registry is empty")
	}
	return NewRegistry(doc.Funds)
}

// All returns the funds in declaration order.
func (r *Registry) All() []Config {
	return r.funds
}

// Get looks up a fund by id.
func (r *Registry) Get(fundID string) (Config, bool) {
	c, ok := r.byID[fundID]
	return c, ok
}

// Len returns the number of configured funds.
func (r *Registry) Len() int {
	return len(r.funds)
}

package ingest

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/david/opportunity-radar/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Collaborator kinds.
const (
	KindSAMGov       = "sam_gov"
	KindGrantsGov    = "grants_gov"
	KindUSASpending  = "usaspending"
	KindRSS          = "rss"
	KindHTML         = "html"
	KindAIDiscovery  = "ai_discovery"
	defaultRateLimit = 60
)

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Default: 1.0
}

// QueryConfig narrows what a collaborator asks its upstream for.
type QueryConfig struct {
	Keywords []string `yaml:"keywords,omitempty"`
	Limit    int      `yaml:"limit,omitempty"`
	DaysBack int      `yaml:"days_back,omitempty"`
	NAICS    []string `yaml:"naics,omitempty"`
	MaxPages int      `yaml:"max_pages,omitempty"` // Default: 1
	// Details fetches the per-record detail document where the upstream has one.
	Details bool `yaml:"details,omitempty"`
}

func (q QueryConfig) limit(def int) int {
	if q.Limit > 0 {
		return q.Limit
	}
	return def
}

func (q QueryConfig) pages() int {
	if q.MaxPages > 0 {
		return q.MaxPages
	}
	return 1
}

type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // CSS selector for the list item wrapper
	Link      string `yaml:"link,omitempty"`
	LinkAttr  string `yaml:"link_attr,omitempty"` // default: href
	Title     string `yaml:"title,omitempty"`
	Date      string `yaml:"date,omitempty"`
	Due       string `yaml:"due,omitempty"`
	Content   string `yaml:"content,omitempty"`
	Agency    string `yaml:"agency,omitempty"`
	Next      string `yaml:"next,omitempty"` // pagination link
}

// SourceConfig defines a single data source.
type SourceConfig struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"` // opportunity source_type
	Kind             string `yaml:"kind"` // collaborator that fetches it
	BaseURL          string `yaml:"base_url,omitempty"`
	APIKey           string `yaml:"api_key,omitempty"`
	APIKeyRequired   bool   `yaml:"api_key_required,omitempty"`
	RateLimitPerHour int    `yaml:"rate_limit_per_hour,omitempty"`
	Active           *bool  `yaml:"active,omitempty"`
	Description      string `yaml:"description,omitempty"`

	Fetch     FetchConfig    `yaml:"fetch,omitempty"`
	Query     QueryConfig    `yaml:"query,omitempty"`
	Feeds     []string       `yaml:"feeds,omitempty"`
	Selectors SelectorConfig `yaml:"selectors,omitempty"`

	// Fields lists extra candidate keys per logical field for this source.
	Fields                map[string][]string `yaml:"fields,omitempty"`
	AllowPlaceholderTitle bool                `yaml:"allow_placeholder_title,omitempty"`
}

// IsActive defaults to true when the registry omits the flag.
func (c SourceConfig) IsActive() bool {
	return c.Active == nil || *c.Active
}

// HasAPIKey reports whether a required key resolved to a non-empty value.
func (c SourceConfig) HasAPIKey() bool {
	key := strings.TrimSpace(c.APIKey)
	return key != "" && !strings.HasPrefix(key, "${")
}

// DataSource projects the registry entry onto the persisted data_sources row.
func (c SourceConfig) DataSource() models.DataSource {
	rate := c.RateLimitPerHour
	if rate <= 0 {
		rate = defaultRateLimit
	}
	return models.DataSource{
		Name:             c.Name,
		Type:             c.Type,
		BaseURL:          c.BaseURL,
		APIKeyRequired:   c.APIKeyRequired,
		RateLimitPerHour: rate,
		IsActive:         c.IsActive(),
	}
}

// LoadRegistry reads sources from path, or from the embedded sources.yaml
// when path is empty. Environment variables are expanded first.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes registry YAML after expanding ${VAR} references.
func ParseRegistry(data []byte) (*Registry, error) {
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for _, s := range reg.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("registry source without name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate registry source %q", s.Name)
		}
		seen[s.Name] = true
		for field := range s.Fields {
			if _, ok := defaultRules[field]; !ok {
				return nil, fmt.Errorf("source %q: unknown field %q", s.Name, field)
			}
		}
	}
	return &reg, nil
}

// Get returns the source named name.
func (r *Registry) Get(name string) (SourceConfig, bool) {
	for _, s := range r.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Active returns the sources whose active flag is not false.
func (r *Registry) Active() []SourceConfig {
	var out []SourceConfig
	for _, s := range r.Sources {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// All returns every configured source, active or not.
func (r *Registry) All() []SourceConfig {
	return append([]SourceConfig(nil), r.Sources...)
}

// Package config handles pageprobe configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Check types.
const (
	CheckLinkInSelector = "link_in_selector"
	CheckElementStyle   = "element_style"
	CheckRegexInSource  = "regex_in_source"
)

// Config is the top-level pageprobe configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Pages   []PageConfig  `yaml:"pages"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// SessionConfig selects and configures the active backend.
type SessionConfig struct {
	Backend string        `yaml:"backend"` // http | browser
	BaseURL string        `yaml:"base_url"`
	HTTP    HTTPConfig    `yaml:"http"`
	Browser BrowserConfig `yaml:"browser"`
}

// HTTPConfig configures the static-fetch backend.
type HTTPConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBody   int64         `yaml:"max_body"`
}

// BrowserConfig configures the live-driver backend.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	Stealth          string        `yaml:"stealth"` // plain | headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// PageConfig is a page to open and the checks to run on it.
type PageConfig struct {
	URL    string        `yaml:"url" json:"url"`
	Checks []CheckConfig `yaml:"checks" json:"checks"`
}

// CheckConfig is one assertion. Which fields apply depends on Type.
type CheckConfig struct {
	Name     string `yaml:"name" json:"name,omitempty"`
	Type     string `yaml:"type" json:"type"`
	Negate   bool   `yaml:"negate" json:"negate,omitempty"`
	Text     string `yaml:"text" json:"text,omitempty"`
	Link     string `yaml:"link" json:"link,omitempty"`
	Selector string `yaml:"selector" json:"selector,omitempty"`
	Style    string `yaml:"style" json:"style,omitempty"`
	Value    string `yaml:"value" json:"value,omitempty"`
	Pseudo   string `yaml:"pseudo" json:"pseudo,omitempty"`
	Pattern  string `yaml:"pattern" json:"pattern,omitempty"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | files | sqlite
	URL  string `yaml:"url"`  // webhook
	Dir  string `yaml:"dir"`  // files
	Path string `yaml:"path"` // sqlite
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the checks.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.Session.ApplyDefaults()
	for i := range c.Pages {
		for j := range c.Pages[i].Checks {
			ch := &c.Pages[i].Checks[j]
			if ch.Name == "" {
				ch.Name = fmt.Sprintf("%s#%d", ch.Type, j+1)
			}
		}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

// ApplyDefaults fills unset session fields.
func (s *SessionConfig) ApplyDefaults() {
	if s.Backend == "" {
		s.Backend = "http"
	}
	if s.HTTP.UserAgent == "" {
		s.HTTP.UserAgent = "Mozilla/5.0 (compatible; pageprobe/1.0)"
	}
	if s.HTTP.Timeout <= 0 {
		s.HTTP.Timeout = 30 * time.Second
	}
	if s.HTTP.MaxBody <= 0 {
		s.HTTP.MaxBody = 10 << 20
	}
	if s.Browser.Stealth == "" {
		s.Browser.Stealth = "headless"
	}
	if s.Browser.NavTimeout <= 0 {
		s.Browser.NavTimeout = 30 * time.Second
	}
	if s.Browser.XvfbDisplay == "" {
		s.Browser.XvfbDisplay = ":99"
	}
	if s.Browser.ResourceBlocking == nil {
		s.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
}

// Validate reports every malformed page or check.
func (c *Config) Validate() error {
	var errs []error
	for i, p := range c.Pages {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("config: page %d: url is required", i+1))
		}
		for _, ch := range p.Checks {
			if err := ch.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("config: page %d: %w", i+1, err))
			}
		}
	}
	for i, s := range c.Sinks {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: sink %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the fields required by the check type.
func (ch CheckConfig) Validate() error {
	switch ch.Type {
	case CheckLinkInSelector:
		if ch.Selector == "" {
			return fmt.Errorf("check %q: selector is required", ch.Name)
		}
	case CheckElementStyle:
		if ch.Selector == "" || ch.Style == "" {
			return fmt.Errorf("check %q: selector and style are required", ch.Name)
		}
	case CheckRegexInSource:
		if ch.Pattern == "" {
			return fmt.Errorf("check %q: pattern is required", ch.Name)
		}
	default:
		return fmt.Errorf("check %q: unknown type %q", ch.Name, ch.Type)
	}
	return nil
}

func (s SinkConfig) validate() error {
	switch s.Type {
	case "stdout":
	case "webhook":
		if s.URL == "" {
			return errors.New("webhook sink needs url")
		}
	case "files":
		if s.Dir == "" {
			return errors.New("files sink needs dir")
		}
	case "sqlite":
		if s.Path == "" {
			return errors.New("sqlite sink needs path")
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Type)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ScraperConfig holds general browser and scraper settings.
type ScraperConfig struct {
	Driver          string        `yaml:"driver"` // "rod" or "chromedp"
	Headless        bool          `yaml:"headless"`
	NoSandbox       bool          `yaml:"no_sandbox"`
	UserAgent       string        `yaml:"user_agent"`
	Workers         string        `yaml:"workers"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
	SettleTimeout   time.Duration `yaml:"settle_timeout"`
}

// PageConfig is one product page whose reviews are collected.
type PageConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FieldSelectors maps each output column to the selector that finds it inside a review container.
type FieldSelectors struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
	Date  string `yaml:"date"`
	Name  string `yaml:"name"`
}

// SelectorConfig holds the selectors used to locate reviews and the load-more control.
type SelectorConfig struct {
	Container string         `yaml:"container"`
	LoadMore  string         `yaml:"load_more"`
	Fields    FieldSelectors `yaml:"fields"`
}

// LimitsConfig bounds a single extraction run. Zero means unset, except for
// MaxStalls where zero takes the default and a negative value disables it.
type LimitsConfig struct {
	MaxRecords int `yaml:"max_records"`
	PageSize   int `yaml:"page_size"`
	MaxStalls  int `yaml:"max_stalls"`
}

// OutputConfig controls where collected reviews end up.
type OutputConfig struct {
	CSVDir      string `yaml:"csv_dir"`
	Database    string `yaml:"database"`
	DumpDir     string `yaml:"dump_dir"`
	KeepPartial bool   `yaml:"keep_partial"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// Config is the complete structure for the config.yml file.
type Config struct {
	Scraper   ScraperConfig  `yaml:"scraper"`
	Pages     []PageConfig   `yaml:"pages"`
	Selectors SelectorConfig `yaml:"selectors"`
	Limits    LimitsConfig   `yaml:"limits"`
	Output    OutputConfig   `yaml:"output"`
	Logging   LoggingConfig  `yaml:"logging"`
	Server    ServerConfig   `yaml:"server"`
}

// Default returns the settings used for anything config.yml leaves empty.
// The selectors match the Okendo review widget.
func Default() Config {
	return Config{
		Scraper: ScraperConfig{
			Driver:          "rod",
			Workers:         "auto",
			NavigateTimeout: 60 * time.Second,
			WaitTimeout:     10 * time.Second,
			SettleTimeout:   5 * time.Second,
		},
		Selectors: SelectorConfig{
			Container: ".oke-w-reviews-list-item",
			LoadMore:  ".oke-showMore-button-text.oke-button-text",
			Fields: FieldSelectors{
				Title: ".oke-reviewContent-title.oke-title",
				Text:  ".oke-reviewContent-body.oke-bodyText",
				Date:  ".oke-reviewContent-date",
				Name:  ".oke-w-reviewer-name",
			},
		},
		Limits: LimitsConfig{
			MaxStalls: 3,
		},
		Output: OutputConfig{
			CSVDir:   "out",
			Database: "reviews.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

// LoadConfig reads a YAML file, fills empty settings from Default and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes. See LoadConfig.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml: %w", err)
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Scraper.Driver {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("unknown scraper driver %q (want rod or chromedp)", c.Scraper.Driver)
	}
	for name, d := range map[string]time.Duration{
		"navigate_timeout": c.Scraper.NavigateTimeout,
		"wait_timeout":     c.Scraper.WaitTimeout,
		"settle_timeout":   c.Scraper.SettleTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("scraper.%s must be positive, got %s", name, d)
		}
	}
	if strings.TrimSpace(c.Selectors.Container) == "" {
		return errors.New("selectors.container is required")
	}
	if strings.TrimSpace(c.Selectors.LoadMore) == "" {
		return errors.New("selectors.load_more is required")
	}
	if c.Limits.MaxRecords < 0 || c.Limits.PageSize < 0 {
		return errors.New("limits.max_records and limits.page_size must not be negative")
	}
	seen := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("pages[%d]: url is required", i)
		}
		if p.Name == "" {
			continue
		}
		if seen[p.Name] {
			return fmt.Errorf("pages[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// FindPage returns the configured page with the given name or URL.
func (c *Config) FindPage(key string) (PageConfig, bool) {
	for _, p := range c.Pages {
		if p.Name == key || p.URL == key {
			return p, true
		}
	}
	return PageConfig{}, false
}

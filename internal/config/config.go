package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run the scraper.
type Config struct {
	Crawl   CrawlConfig   `yaml:"crawl"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// CrawlConfig controls the outbound HTTP behaviour and request pacing.
type CrawlConfig struct {
	BaseURL        string            `yaml:"base_url"`
	UserAgent      string            `yaml:"user_agent"`
	Referer        string            `yaml:"referer"`
	Headers        map[string]string `yaml:"headers"`
	RequestTimeout Duration          `yaml:"request_timeout"`
	FetchDelay     Duration          `yaml:"fetch_delay"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	ProxyURL       string            `yaml:"proxy_url"`
}

// StorageConfig locates the persisted JSON collections.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with the values the production site expects.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			BaseURL: "https://www.agroprecios.com/precios-subasta-tabla.php",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) " +
				"Chrome/123.0.0.0 Safari/537.36",
			Referer:        "https://www.agroprecios.com/",
			Headers:        map[string]string{},
			RequestTimeout: DurationFrom(20 * time.Second),
			FetchDelay:     DurationFrom(1 * time.Second),
			MaxBodyBytes:   5 * 1024 * 1024,
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: false,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader on top of defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the scraper configuration.
func (c Config) Validate() error {
	if c.Crawl.BaseURL == "" {
		return errors.New("crawl.base_url must be set")
	}
	parsed, err := url.Parse(c.Crawl.BaseURL)
	if err != nil {
		return fmt.Errorf("crawl.base_url is not a valid url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("crawl.base_url %q missing scheme or host", c.Crawl.BaseURL)
	}
	if c.Crawl.UserAgent == "" {
		return errors.New("crawl.user_agent must be set")
	}
	if c.Crawl.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("crawl.request_timeout must be > 0 (got %s)", c.Crawl.RequestTimeout)
	}
	if c.Crawl.FetchDelay.Duration < 0 {
		return fmt.Errorf("crawl.fetch_delay must be >= 0 (got %s)", c.Crawl.FetchDelay)
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be > 0 (got %d)", c.Crawl.MaxBodyBytes)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir must be set")
	}
	return nil
}

func (c *Config) normalise() {
	c.Crawl.BaseURL = strings.TrimSpace(c.Crawl.BaseURL)
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Crawl.Referer = strings.TrimSpace(c.Crawl.Referer)
	c.Crawl.ProxyURL = strings.TrimSpace(c.Crawl.ProxyURL)
	c.Storage.DataDir = strings.TrimSpace(c.Storage.DataDir)
	if c.Crawl.Headers == nil {
		c.Crawl.Headers = map[string]string{}
	}
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Scraper ScraperConfig         `yaml:"scraper"`
	Sites   map[string]SiteConfig `yaml:"sites"`
}

// ScraperConfig holds the global scraping knobs. Durations are expressed
// as float seconds, matching the YAML layout; use the *Duration getters.
type ScraperConfig struct {
	ConcurrentRequests int     `yaml:"concurrent_requests"`
	RateLimitDelay     float64 `yaml:"rate_limit_delay"`
	Timeout            float64 `yaml:"timeout"`
	MaxRetries         int     `yaml:"max_retries"`
	RetryBackoff       float64 `yaml:"retry_backoff"`
	RetryBackoffMax    float64 `yaml:"retry_backoff_max"`
	UserAgent          string  `yaml:"user_agent"`
	RespectRobotsTxt   bool    `yaml:"respect_robots_txt"`
	MetricsAddr        string  `yaml:"metrics_addr"`
}

// SiteConfig describes one scrape target. Zero-valued fields fall back to
// the global scraper settings or, for known sites, the built-in defaults.
type SiteConfig struct {
	Enabled        bool              `yaml:"enabled"`
	SearchURL      string            `yaml:"search_url"`
	Selectors      map[string]string `yaml:"selectors"`
	RateLimitDelay float64           `yaml:"rate_limit_delay"`
	Timeout        float64           `yaml:"timeout"`
	UserAgent      string            `yaml:"user_agent"`
}

// DefaultConfig returns the built-in configuration with all four sites
// enabled.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			ConcurrentRequests: 5,
			RateLimitDelay:     1.0,
			Timeout:            10.0,
			MaxRetries:         3,
			RetryBackoff:       2.0,
			RetryBackoffMax:    10.0,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			RespectRobotsTxt:   false,
		},
		Sites: defaultSites(),
	}
}

func defaultSites() map[string]SiteConfig {
	return map[string]SiteConfig{
		"ebay": {
			Enabled:   true,
			SearchURL: "https://www.ebay.com/sch/i.html?_nkw={query}",
			Selectors: map[string]string{
				"title":        `h1.x-item-title__mainTitle, #itemTitle`,
				"price":        `.x-price-primary, #prcIsum, #mm-saleDscPrc`,
				"image":        `#icImg, .ux-image-carousel-item img`,
				"availability": `.d-quantity__availability, #qtySubTxt`,
			},
		},
		"walmart": {
			Enabled:   true,
			SearchURL: "https://www.walmart.com/search?q={query}",
			Selectors: map[string]string{
				"title":        `h1[itemprop="name"], h1.prod-ProductTitle`,
				"price":        `[itemprop="price"], .price-characteristic`,
				"image":        `.prod-hero-image img, img.hover-zoom-hero-image`,
				"availability": `.prod-ProductOffer-oosMsg, .fulfillment-messaging`,
			},
		},
		"target": {
			Enabled:   true,
			SearchURL: "https://www.target.com/s?searchTerm={query}",
			Selectors: map[string]string{
				"title":        `h1[data-test="product-title"]`,
				"price":        `[data-test="product-price"]`,
				"image":        `[data-test="image-gallery-item-0"] img, .slideDeckPicture img`,
				"availability": `[data-test="storeAvailabilityMessage"], [data-test="fulfillment"]`,
			},
		},
		"aliexpress": {
			Enabled:   true,
			SearchURL: "https://www.aliexpress.com/wholesale?SearchText={query}",
			Selectors: map[string]string{
				"title":        `h1.product-title-text, .product-title`,
				"price":        `.product-price-value, .uniform-banner-box-price`,
				"image":        `.magnifier-image, .images-view-item img`,
				"availability": `.product-quantity-tip, .quantity-info`,
			},
		},
	}
}

// Load reads a YAML configuration file, fills unset fields with defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills zero-valued settings. A site entry for a known site
// inherits the built-in search URL and selectors when it leaves them out,
// so a config can flip enabled flags without restating scrape rules.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Scraper.ConcurrentRequests <= 0 {
		c.Scraper.ConcurrentRequests = def.Scraper.ConcurrentRequests
	}
	if c.Scraper.RateLimitDelay <= 0 {
		c.Scraper.RateLimitDelay = def.Scraper.RateLimitDelay
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = def.Scraper.Timeout
	}
	if c.Scraper.MaxRetries <= 0 {
		c.Scraper.MaxRetries = def.Scraper.MaxRetries
	}
	if c.Scraper.RetryBackoff <= 0 {
		c.Scraper.RetryBackoff = def.Scraper.RetryBackoff
	}
	if c.Scraper.RetryBackoffMax <= 0 {
		c.Scraper.RetryBackoffMax = def.Scraper.RetryBackoffMax
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = def.Scraper.UserAgent
	}

	if c.Sites == nil {
		c.Sites = def.Sites
		return
	}
	for name, site := range c.Sites {
		known, ok := def.Sites[name]
		if !ok {
			continue
		}
		if site.SearchURL == "" {
			site.SearchURL = known.SearchURL
		}
		if len(site.Selectors) == 0 {
			site.Selectors = known.Selectors
		}
		c.Sites[name] = site
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	s := c.Scraper
	if s.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be positive")
	}
	if s.RateLimitDelay < 0 {
		return fmt.Errorf("rate limit delay cannot be negative")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if s.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if s.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if s.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if s.RetryBackoffMax > 0 && s.RetryBackoff > s.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%.1fs) cannot exceed retry backoff max (%.1fs)", s.RetryBackoff, s.RetryBackoffMax)
	}
	if s.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	for name, site := range c.Sites {
		if site.RateLimitDelay < 0 {
			return fmt.Errorf("site %s: rate limit delay cannot be negative", name)
		}
		if site.Timeout < 0 {
			return fmt.Errorf("site %s: timeout cannot be negative", name)
		}
		if !site.Enabled {
			continue
		}
		if site.SearchURL == "" {
			return fmt.Errorf("site %s: search url cannot be empty", name)
		}
		if !strings.Contains(site.SearchURL, "{query}") {
			return fmt.Errorf("site %s: search url must contain {query}", name)
		}
		parsed, err := url.Parse(site.SearchURL)
		if err != nil {
			return fmt.Errorf("site %s: invalid search url: %w", name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("site %s: search url must be http or https", name)
		}
		if parsed.Host == "" {
			return fmt.Errorf("site %s: search url must include a host", name)
		}
	}

	return nil
}

// EnabledSites returns the enabled site names in sorted order.
func (c *Config) EnabledSites() []string {
	names := make([]string, 0, len(c.Sites))
	for name, site := range c.Sites {
		if site.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// RateLimitDuration converts the global rate limit delay to a Duration.
func (s ScraperConfig) RateLimitDuration() time.Duration {
	return secondsToDuration(s.RateLimitDelay)
}

// TimeoutDuration converts the global request timeout to a Duration.
func (s ScraperConfig) TimeoutDuration() time.Duration {
	return secondsToDuration(s.Timeout)
}

// RetryBackoffDuration converts the base retry backoff to a Duration.
func (s ScraperConfig) RetryBackoffDuration() time.Duration {
	return secondsToDuration(s.RetryBackoff)
}

// RetryBackoffMaxDuration converts the retry backoff cap to a Duration.
func (s ScraperConfig) RetryBackoffMaxDuration() time.Duration {
	return secondsToDuration(s.RetryBackoffMax)
}

// SiteRateLimit returns the effective rate limit delay for a site.
func (c *Config) SiteRateLimit(name string) time.Duration {
	if site, ok := c.Sites[name]; ok && site.RateLimitDelay > 0 {
		return secondsToDuration(site.RateLimitDelay)
	}
	return c.Scraper.RateLimitDuration()
}

// SiteTimeout returns the effective request timeout for a site.
func (c *Config) SiteTimeout(name string) time.Duration {
	if site, ok := c.Sites[name]; ok && site.Timeout > 0 {
		return secondsToDuration(site.Timeout)
	}
	return c.Scraper.TimeoutDuration()
}

// SiteUserAgent returns the effective user agent for a site.
func (c *Config) SiteUserAgent(name string) string {
	if site, ok := c.Sites[name]; ok && site.UserAgent != "" {
		return site.UserAgent
	}
	return c.Scraper.UserAgent
}

// EnvString returns the environment value for key, or fallback when unset.
func EnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt returns the integer environment value for key, or fallback when
// unset or unparseable.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

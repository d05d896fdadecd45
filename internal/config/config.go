package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	AllowOrigins  []string      `yaml:"allow_origins"` // CORS; empty = any origin
}

// Endpoints are CMS paths resolved against CMS.BaseURL. Query strings are allowed.
type Endpoints struct {
	About         string `yaml:"about"`
	Events        string `yaml:"events"`
	Brands        string `yaml:"brands"`
	Catalog       string `yaml:"catalog"`
	Progress      string `yaml:"progress"`
	Login         string `yaml:"login"`
	Notifications string `yaml:"notifications"`
	// Collection roots used by admin writes (no query string).
	AboutAdmin  string `yaml:"about_admin"`
	EventsAdmin string `yaml:"events_admin"`
	BrandsAdmin string `yaml:"brands_admin"`
}

type CMS struct {
	BaseURL   string        `yaml:"base_url"` // e.g. https://cms.example.com
	Timeout   time.Duration `yaml:"timeout"`  // per-request timeout
	UserAgent string        `yaml:"user_agent"`
	Endpoints Endpoints     `yaml:"endpoints"`
}

type Session struct {
	StatePath string `yaml:"state_path"` // where `bafsite login` keeps the admin token
}

type Contact struct {
	DedupTTL     time.Duration `yaml:"dedup_ttl"`
	DedupMaxKeys int           `yaml:"dedup_max_keys"`
}

type Log struct {
	Mode string `yaml:"mode"` // development | production
}

type Metrics struct {
	Enable bool `yaml:"enable"`
}

type Config struct {
	Server  Server  `yaml:"server"`
	CMS     CMS     `yaml:"cms"`
	Session Session `yaml:"session"`
	Contact Contact `yaml:"contact"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Load reads the YAML file at path, applies env overrides and defaults, then validates.
// An empty path skips the file and relies on env + defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	for _, k := range []string{"CMS_URL", "VITE_CMS_URL"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			c.CMS.BaseURL = v
			break
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		c.Log.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDRESS")); v != "" {
		c.Server.ListenAddress = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 20 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.CMS.Timeout == 0 {
		c.CMS.Timeout = 15 * time.Second
	}
	if c.CMS.UserAgent == "" {
		c.CMS.UserAgent = "baf-site/1.0"
	}
	ep := &c.CMS.Endpoints
	setDefault(&ep.About, "/api/AboutSection?depth=1")
	setDefault(&ep.Events, "/api/events?limit=10&depth=1")
	setDefault(&ep.Brands, "/api/BrandsSection?depth=1")
	setDefault(&ep.Catalog, "/api/catalog?depth=1")
	setDefault(&ep.Progress, "/api/progress?limit=1")
	setDefault(&ep.Login, "/api/admins/login")
	setDefault(&ep.Notifications, "/api/notifications")
	setDefault(&ep.AboutAdmin, "/api/AboutSection")
	setDefault(&ep.EventsAdmin, "/api/events")
	setDefault(&ep.BrandsAdmin, "/api/BrandsSection")
	if c.Session.StatePath == "" {
		c.Session.StatePath = ".bafsite-session.json"
	}
	if c.Contact.DedupTTL == 0 {
		c.Contact.DedupTTL = 10 * time.Minute
	}
	if c.Contact.DedupMaxKeys == 0 {
		c.Contact.DedupMaxKeys = 5000
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
}

func setDefault(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

var ErrNoBaseURL = errors.New("cms.base_url is required (or set CMS_URL)")

func (c *Config) Validate() error {
	base := strings.TrimSpace(c.CMS.BaseURL)
	if base == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("cms.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("cms.base_url must be an absolute http(s) URL, got %q", base)
	}
	if c.CMS.Timeout < 0 {
		return fmt.Errorf("cms.timeout must not be negative")
	}
	return c.CMS.Endpoints.Validate()
}

// Validate checks that every endpoint is a non-empty path relative to the base URL.
func (e Endpoints) Validate() error {
	for _, ep := range []struct{ name, path string }{
		{"about", e.About},
		{"events", e.Events},
		{"brands", e.Brands},
		{"catalog", e.Catalog},
		{"progress", e.Progress},
		{"login", e.Login},
		{"notifications", e.Notifications},
		{"about_admin", e.AboutAdmin},
		{"events_admin", e.EventsAdmin},
		{"brands_admin", e.BrandsAdmin},
	} {
		p := strings.TrimSpace(ep.path)
		if p == "" {
			return fmt.Errorf("cms.endpoints.%s is empty", ep.name)
		}
		u, err := url.Parse(p)
		if err != nil {
			return fmt.Errorf("cms.endpoints.%s: %w", ep.name, err)
		}
		if u.IsAbs() || u.Host != "" {
			return fmt.Errorf("cms.endpoints.%s must be relative to cms.base_url, got %q", ep.name, p)
		}
	}
	return nil
}

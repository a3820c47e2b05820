package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"huddle/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Email     EmailConfig     `yaml:"email"`
}

type ServerConfig struct {
	Name            string        `yaml:"name"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	CookieDomain     string        `yaml:"cookie_domain"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl"`
}

type SecurityConfig struct {
	AllowedOrigins          []string `yaml:"allowed_origins"`
	TrustedProxies          []string `yaml:"trusted_proxies"`
	BlockSuspicious         bool     `yaml:"block_suspicious"`
	GlobalRequestsPerMinute int      `yaml:"global_requests_per_minute"`
}

// PolicyConfig overrides one rate-limit preset. Zero values keep the preset.
type PolicyConfig struct {
	Window                 time.Duration `yaml:"window"`
	Max                    int           `yaml:"max"`
	SkipSuccessfulRequests bool          `yaml:"skip_successful_requests"`
	SkipFailedRequests     bool          `yaml:"skip_failed_requests"`
}

// Apply returns base with the configured overrides.
func (p PolicyConfig) Apply(base ratelimit.Policy) ratelimit.Policy {
	if p.Window > 0 {
		base.Window = p.Window
	}
	if p.Max > 0 {
		base.Max = p.Max
	}
	base.SkipSuccessfulRequests = base.SkipSuccessfulRequests || p.SkipSuccessfulRequests
	base.SkipFailedRequests = base.SkipFailedRequests || p.SkipFailedRequests
	return base
}

type RateLimitConfig struct {
	Auth          PolicyConfig `yaml:"auth"`
	API           PolicyConfig `yaml:"api"`
	ProfileUpdate PolicyConfig `yaml:"profile_update"`
	PasswordReset PolicyConfig `yaml:"password_reset"`
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("HUDDLE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("HUDDLE_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("HUDDLE_ENV"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("HUDDLE_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("HUDDLE_ALLOWED_ORIGINS"); v != "" {
		c.Security.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HUDDLE_TRUSTED_PROXIES"); v != "" {
		c.Security.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("HUDDLE_BLOCK_SUSPICIOUS"); v != "" {
		block, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HUDDLE_BLOCK_SUSPICIOUS: %w", err)
		}
		c.Security.BlockSuspicious = block
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Server.Environment {
	case "", "development", "production", "test":
	default:
		return fmt.Errorf("server.environment must be development, production or test")
	}
	if c.Server.Environment == "production" && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("security.allowed_origins is required in production")
	}
	if c.Email.SMTP.Host != "" {
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp.port is required")
		}
		if c.Email.SMTP.From == "" {
			return fmt.Errorf("email.smtp.from is required")
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "Huddle"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/huddle.db"
	}
	if c.Database.CleanupInterval == 0 {
		c.Database.CleanupInterval = time.Hour
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 30 * 24 * time.Hour
	}
	if c.Auth.PasswordResetTTL == 0 {
		c.Auth.PasswordResetTTL = time.Hour
	}
	if c.Security.GlobalRequestsPerMinute == 0 {
		c.Security.GlobalRequestsPerMinute = 300
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Production() bool {
	return c.Server.Environment == "production"
}

// EmailEnabled reports whether an SMTP server is configured.
func (c *Config) EmailEnabled() bool {
	return c.Email.SMTP.Host != ""
}

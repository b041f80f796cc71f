package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, the inclusion policy, the
// redirect follower, the engine's concurrency, the cache, and the optional
// debug HTTP server.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains the optional debug server configuration (metrics and pprof)
	HTTP struct {
		// Addr is the address the debug server listens on; empty disables it
		Addr string `env:"HTTP_ADDR" env-default:"" yaml:"addr"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// Policy contains the inclusion criteria applied before any network work
	Policy struct {
		// AllowedDomains restricts expansion to these domains; empty allows all
		AllowedDomains []string `env:"POLICY_ALLOWED_DOMAINS" env-separator:"," env-default:"" yaml:"allowedDomains"`
		// DeniedDomains excludes these domains even when the allowlist is empty
		DeniedDomains []string `env:"POLICY_DENIED_DOMAINS" env-separator:"," env-default:"" yaml:"deniedDomains"`
		// MinURLLength skips URLs shorter than this many bytes
		MinURLLength int `env:"POLICY_MIN_URL_LENGTH" env-default:"20" yaml:"minUrlLength"`
	} `yaml:"policy"`

	// Resolver contains redirect-following limits
	Resolver struct {
		// MaxDepth is the default redirect depth limit per chain
		MaxDepth int `env:"RESOLVER_MAX_DEPTH" env-default:"10" yaml:"maxDepth"`
		// ChainTimeout bounds one whole redirect chain, not a single hop
		ChainTimeout time.Duration `env:"RESOLVER_CHAIN_TIMEOUT" env-default:"10s" yaml:"chainTimeout"`
		// HeadUnsupportedStatuses trigger a GET retry of the same hop
		HeadUnsupportedStatuses []int `env:"RESOLVER_HEAD_UNSUPPORTED_STATUSES" env-separator:"," env-default:"405,501" yaml:"headUnsupportedStatuses"` //nolint: lll
	} `yaml:"resolver"`

	// Engine contains batch scheduling settings
	Engine struct {
		// Concurrency is the maximum number of simultaneous in-flight chains
		Concurrency int `env:"ENGINE_CONCURRENCY" env-default:"50" yaml:"concurrency"`
	} `yaml:"engine"`

	// Cache contains resolution cache settings
	Cache struct {
		// Capacity bounds the number of in-memory entries; zero means unbounded
		Capacity int `env:"CACHE_CAPACITY" env-default:"0" yaml:"capacity"`
		// CacheFailures also persists failed results to the backing store
		CacheFailures bool `env:"CACHE_FAILURES" env-default:"false" yaml:"cacheFailures"`

		// Redis configures the optional shared backing store; empty Addr keeps
		// the cache purely in-memory
		Redis struct {
			Addr     string        `env:"CACHE_REDIS_ADDR" env-default:"" yaml:"addr"`
			Password string        `env:"CACHE_REDIS_PASSWORD" env-default:"" yaml:"password"`
			DB       int           `env:"CACHE_REDIS_DB" env-default:"0" yaml:"db"`
			TTL      time.Duration `env:"CACHE_REDIS_TTL" env-default:"24h" yaml:"ttl"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	// GracefulShutdownTimeout is the maximum duration to wait for the debug server to stop
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config
// struct. A missing config file is not an error: the batch CLI is commonly
// driven by environment variables and defaults alone.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read environment: %w", err)
		}
	}

	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "iplist/pkg/platform/strings"
)

// Publisher backends.
const (
	PublisherGitHub = "github"
	PublisherMemory = "memory"
)

// DefaultDNSServers are written into every newly created category document
// and used for resolution when DNS_SERVERS is unset.
var DefaultDNSServers = []string{"127.0.0.11:53", "77.88.8.88:53", "8.8.8.8:53", "1.1.1.1:53"}

var (
	ErrNoCategories       = errors.New("dataset.categories must list at least one category")
	ErrNoDNSServers       = errors.New("resolver.servers must list at least one resolver")
	ErrInvalidTimeout     = errors.New("timeouts must be positive")
	ErrInvalidPublisher   = errors.New("publisher must be 'github' or 'memory'")
	ErrMissingGitHubRepo  = errors.New("github.repo is required for the github publisher")
	ErrMissingGitHubToken = errors.New("github.token is required for the github publisher")
	ErrInvalidLogLevel    = errors.New("log.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("log.format must be 'json' or 'text'")
	ErrInvalidAttempts    = errors.New("dataset.max_attempts must be at least 1")
	ErrInvalidRateLimit   = errors.New("rate_limit needs a non-negative request count and a positive window")
	ErrLockTTLTooShort    = errors.New("redis.lock_ttl must cover every publish attempt of one ingestion")
)

// Config is the full service configuration.
type Config struct {
	Server    Server      `yaml:"server"`
	Log       Log         `yaml:"log"`
	Dataset   Dataset     `yaml:"dataset"`
	Resolver  Resolver    `yaml:"resolver"`
	Reasoner  Reasoner    `yaml:"reasoner"`
	Publisher string      `yaml:"publisher"`
	GitHub    GitHub      `yaml:"github"`
	Redis     RedisConfig `yaml:"redis"`
	Postgres  Postgres    `yaml:"postgres"`
	Kafka     Kafka       `yaml:"kafka"`
	RateLimit RateLimit   `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists ingress CIDRs whose X-Forwarded-For is believed.
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dataset controls category documents and the ingest pipeline around them.
type Dataset struct {
	Categories         []string      `yaml:"categories"`
	CategoriesFromRepo bool          `yaml:"categories_from_repo"`
	Root               string        `yaml:"root"`
	File               string        `yaml:"file"`
	DefaultTimeout     int           `yaml:"default_timeout"`
	WWWAliases         bool          `yaml:"www_aliases"`
	DefaultTLD         string        `yaml:"default_tld"`
	MaxAttempts        int           `yaml:"max_attempts"`
	PublishTimeout     time.Duration `yaml:"publish_timeout"`
}

// conflictBackoffCap matches the longest pause the service takes between
// publish attempts.
const conflictBackoffCap = time.Second

// PublishBudget is the longest one ingestion can hold its category lock: a
// fetch and a write per attempt plus the pauses between attempts.
func (d Dataset) PublishBudget() time.Duration {
	attempts := time.Duration(d.MaxAttempts)
	return attempts*2*d.PublishTimeout + (attempts-1)*conflictBackoffCap
}

type Resolver struct {
	Servers []string      `yaml:"servers"`
	Timeout time.Duration `yaml:"timeout"`
}

// Reasoner configures the generative-language API used for classification and
// service-name guessing. An empty key list disables both.
type Reasoner struct {
	APIKeys []string      `yaml:"api_keys"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// PageTimeout bounds the homepage fetch whose text is added to
	// classification prompts. Zero disables the fetch.
	PageTimeout time.Duration `yaml:"page_timeout"`
}

type GitHub struct {
	Token         string `yaml:"token"`
	Repo          string `yaml:"repo"`
	Branch        string `yaml:"branch"`
	APIURL        string `yaml:"api_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// RedisConfig enables the distributed category lock and the DNS answer cache.
// An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// Postgres enables the durable ingestion journal. An empty URL keeps the
// journal in memory.
type Postgres struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Kafka enables the event stream. No brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RateLimit bounds POST /v1/ingest per client address. Zero requests
// disables the limit.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Default returns a config with every default applied.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    Log{Level: "info", Format: "json"},
		Dataset: Dataset{
			Root:           "config",
			File:           "list.json",
			DefaultTimeout: 3600,
			WWWAliases:     false,
			DefaultTLD:     "com",
			MaxAttempts:    3,
			PublishTimeout: 15 * time.Second,
		},
		Resolver: Resolver{
			Servers: append([]string(nil), DefaultDNSServers...),
			Timeout: 3 * time.Second,
		},
		Reasoner: Reasoner{
			Model:       "gemini-2.5-flash-lite",
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/models",
			Timeout:     20 * time.Second,
			PageTimeout: 5 * time.Second,
		},
		Publisher: PublisherGitHub,
		GitHub: GitHub{
			Branch: "master",
			APIURL: "https://api.github.com",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      2 * time.Minute,
		},
		Postgres:  Postgres{MaxOpenConns: 5},
		Kafka:     Kafka{Topic: "iplist.ingest"},
		RateLimit: RateLimit{Requests: 30, Window: time.Minute},
	}
}

// Load reads the optional YAML file named by IPLIST_CONFIG, applies
// environment overrides on top and validates the result.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("IPLIST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("IPLIST_ADDR", &cfg.Server.Addr)
	e.list("TRUSTED_PROXIES", &cfg.Server.TrustedProxies)
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	e.list("CATEGORIES", &cfg.Dataset.Categories)
	e.boolean("CATEGORIES_FROM_REPO", &cfg.Dataset.CategoriesFromRepo)
	e.str("DATASET_ROOT", &cfg.Dataset.Root)
	e.str("DATASET_FILE", &cfg.Dataset.File)
	e.integer("DATASET_TIMEOUT", &cfg.Dataset.DefaultTimeout)
	e.boolean("WWW_ALIASES", &cfg.Dataset.WWWAliases)
	e.str("DEFAULT_TLD", &cfg.Dataset.DefaultTLD)
	e.integer("PUBLISH_MAX_ATTEMPTS", &cfg.Dataset.MaxAttempts)
	e.duration("PUBLISH_TIMEOUT", &cfg.Dataset.PublishTimeout)

	e.list("DNS_SERVERS", &cfg.Resolver.Servers)
	e.duration("DNS_TIMEOUT", &cfg.Resolver.Timeout)

	e.list("GEMINI_API_KEY", &cfg.Reasoner.APIKeys)
	e.str("GEMINI_MODEL", &cfg.Reasoner.Model)
	e.str("GEMINI_API_URL", &cfg.Reasoner.BaseURL)
	e.duration("CLASSIFY_TIMEOUT", &cfg.Reasoner.Timeout)
	e.duration("PAGE_FETCH_TIMEOUT", &cfg.Reasoner.PageTimeout)

	e.str("PUBLISHER", &cfg.Publisher)
	e.str("GITHUB_TOKEN", &cfg.GitHub.Token)
	e.str("GITHUB_REPO", &cfg.GitHub.Repo)
	e.str("GITHUB_BRANCH", &cfg.GitHub.Branch)
	e.str("GITHUB_API_URL", &cfg.GitHub.APIURL)
	e.str("GITHUB_WEBHOOK_SECRET", &cfg.GitHub.WebhookSecret)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.duration("REDIS_LOCK_TTL", &cfg.Redis.LockTTL)
	e.str("DATABASE_URL", &cfg.Postgres.URL)
	e.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	e.integer("INGEST_RATE_LIMIT", &cfg.RateLimit.Requests)
	e.duration("INGEST_RATE_WINDOW", &cfg.RateLimit.Window)

	return e.err
}

// Validate checks invariants the service cannot start without.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return ErrInvalidLogFormat
	}
	if len(c.Dataset.Categories) == 0 && !c.Dataset.CategoriesFromRepo {
		return ErrNoCategories
	}
	if len(c.Resolver.Servers) == 0 {
		return ErrNoDNSServers
	}
	if c.Resolver.Timeout <= 0 || c.Reasoner.Timeout <= 0 || c.Dataset.PublishTimeout <= 0 || c.Dataset.DefaultTimeout <= 0 || c.Reasoner.PageTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Dataset.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.Redis.URL != "" && c.Redis.LockTTL < c.Dataset.PublishBudget() {
		return fmt.Errorf("%w: %s < %s", ErrLockTTLTooShort, c.Redis.LockTTL, c.Dataset.PublishBudget())
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0) {
		return ErrInvalidRateLimit
	}
	switch c.Publisher {
	case PublisherMemory:
	case PublisherGitHub:
		if c.GitHub.Repo == "" {
			return ErrMissingGitHubRepo
		}
		if c.GitHub.Token == "" {
			return ErrMissingGitHubToken
		}
	default:
		return ErrInvalidPublisher
	}
	return nil
}

// envReader applies set variables and keeps the first parse error.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("parse %s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = pstrings.SplitList(v)
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissing is returned when a setting required by an operation is absent.
var ErrMissing = errors.New("missing configuration")

// Config holds the configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`
	DB          struct {
		URL      string `mapstructure:"url"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Source   SourceConfig   `mapstructure:"source"`
	AI       AIConfig       `mapstructure:"ai"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Search   SearchConfig   `mapstructure:"search"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Server   struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// ConfigFile is the file viper read, empty when running on defaults and
	// environment only.
	ConfigFile string `mapstructure:"-"`
}

// SourceConfig points at the repository of workflow definitions.
type SourceConfig struct {
	Owner       string        `mapstructure:"owner"`
	Repo        string        `mapstructure:"repo"`
	Branch      string        `mapstructure:"branch"`
	Token       string        `mapstructure:"token"`
	APIBaseURL  string        `mapstructure:"api_base_url"`
	RawBaseURL  string        `mapstructure:"raw_base_url"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     uint          `mapstructure:"retries"`
	Incremental bool          `mapstructure:"incremental"`
}

// AIConfig configures the completion and embedding services.
type AIConfig struct {
	BaseURL           string          `mapstructure:"base_url"`
	APIKey            string          `mapstructure:"api_key"`
	ChatModel         string          `mapstructure:"chat_model"`
	Temperature       float32         `mapstructure:"temperature"`
	Timeout           time.Duration   `mapstructure:"timeout"`
	RequestsPerSecond float64         `mapstructure:"requests_per_second"`
	Embedding         EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig selects the embedding backend flavor.
type EmbeddingConfig struct {
	Flavor       string `mapstructure:"flavor"` // openai, ollama or custom
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	Path         string `mapstructure:"path"`
	ResponsePath string `mapstructure:"response_path"`
}

// EnrichConfig holds scheduler defaults.
type EnrichConfig struct {
	Strategy         string `mapstructure:"strategy"` // filtered or window
	DescriptionLimit int    `mapstructure:"description_limit"`
	SEOLimit         int    `mapstructure:"seo_limit"`
	EmbeddingLimit   int    `mapstructure:"embedding_limit"`
	MaxContextBytes  int    `mapstructure:"max_context_bytes"`
}

// SearchConfig holds semantic search settings.
type SearchConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	FallbackRows int     `mapstructure:"fallback_rows"`
	DefaultLimit int     `mapstructure:"default_limit"`
}

// ClassifyConfig holds classifier settings.
type ClassifyConfig struct {
	CategoryRule string `mapstructure:"category_rule"` // first or longest
}

// RedisConfig configures the optional query embedding cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")

	v.SetDefault("db.url", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "workflows")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("source.owner", "")
	v.SetDefault("source.repo", "")
	v.SetDefault("source.branch", "main")
	v.SetDefault("source.token", "")
	v.SetDefault("source.api_base_url", "https://api.github.com")
	v.SetDefault("source.raw_base_url", "https://raw.githubusercontent.com")
	v.SetDefault("source.batch_size", 10)
	v.SetDefault("source.batch_delay", time.Second)
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.retries", 3)
	v.SetDefault("source.incremental", false)

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.requests_per_second", 0)
	v.SetDefault("ai.embedding.flavor", "openai")
	v.SetDefault("ai.embedding.base_url", "")
	v.SetDefault("ai.embedding.api_key", "")
	v.SetDefault("ai.embedding.model", "text-embedding-3-small")
	v.SetDefault("ai.embedding.path", "")
	v.SetDefault("ai.embedding.response_path", "")

	v.SetDefault("enrich.strategy", "filtered")
	v.SetDefault("enrich.description_limit", 10)
	v.SetDefault("enrich.seo_limit", 10)
	v.SetDefault("enrich.embedding_limit", 50)
	v.SetDefault("enrich.max_context_bytes", 12000)

	v.SetDefault("search.threshold", 0.3)
	v.SetDefault("search.fallback_rows", 1000)
	v.SetDefault("search.default_limit", 10)

	v.SetDefault("classify.category_rule", "first")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
}

// LoadConfig loads the configuration from an optional .env file, a config
// file and the environment. Environment variables use upper case keys with
// underscores, e.g. AI_API_KEY or SOURCE_OWNER.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.ConfigFile = v.ConfigFileUsed()

	config.AI.BaseURL = normalizeBaseURL(config.AI.BaseURL)
	config.AI.Embedding.BaseURL = normalizeBaseURL(config.AI.Embedding.BaseURL)
	config.Source.APIBaseURL = normalizeBaseURL(config.Source.APIBaseURL)
	config.Source.RawBaseURL = normalizeBaseURL(config.Source.RawBaseURL)

	// The embedding service shares the chat credentials unless told otherwise.
	if config.AI.Embedding.BaseURL == "" {
		config.AI.Embedding.BaseURL = config.AI.BaseURL
	}
	if config.AI.Embedding.APIKey == "" {
		config.AI.Embedding.APIKey = config.AI.APIKey
	}

	return &config, nil
}

// DSN returns the connection string for the catalog database.
func (c *Config) DSN() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// ValidateSource reports whether a sync run can be started.
func (c *Config) ValidateSource() error {
	return requireAll(map[string]string{
		"source.owner":        c.Source.Owner,
		"source.repo":         c.Source.Repo,
		"source.branch":       c.Source.Branch,
		"source.api_base_url": c.Source.APIBaseURL,
		"source.raw_base_url": c.Source.RawBaseURL,
	})
}

// ValidateChat reports whether the completion service is usable.
func (c *Config) ValidateChat() error {
	return requireAll(map[string]string{
		"ai.base_url":   c.AI.BaseURL,
		"ai.api_key":    c.AI.APIKey,
		"ai.chat_model": c.AI.ChatModel,
	})
}

// ValidateEmbedding reports whether the embedding service is usable. Only the
// openai flavor needs an API key; self-hosted flavors usually run without one.
func (c *Config) ValidateEmbedding() error {
	required := map[string]string{
		"ai.embedding.base_url": c.AI.Embedding.BaseURL,
		"ai.embedding.model":    c.AI.Embedding.Model,
	}
	switch c.AI.Embedding.Flavor {
	case "openai":
		required["ai.embedding.api_key"] = c.AI.Embedding.APIKey
	case "ollama":
	case "custom":
		required["ai.embedding.response_path"] = c.AI.Embedding.ResponsePath
	default:
		return fmt.Errorf("%w: unknown ai.embedding.flavor %q", ErrMissing, c.AI.Embedding.Flavor)
	}
	return requireAll(required)
}

func requireAll(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
}

// normalizeBaseURL strips whitespace and any trailing slash so paths can be
// appended without producing double slashes.
func normalizeBaseURL(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}

// IsDev reports whether the service runs in the development environment.
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

// LogFormat returns the configured log encoder, defaulting to console output
// in development and JSON everywhere else.
func (c *Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	if c.IsDev() {
		return "console"
	}
	return "json"
}

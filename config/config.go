package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the advisor service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Models    ModelsConfig    `mapstructure:"models"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Research  ResearchConfig  `mapstructure:"research"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	Listen         string        `mapstructure:"listen"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ProviderConfig selects the LLM provider the agent runtime talks to.
// An empty APIKey is a valid state: the presentation layer degrades to a
// canned placeholder reply instead of invoking the pipeline.
type ProviderConfig struct {
	Name    string        `mapstructure:"name"` // openai, xai, anthropic, ...
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Non-OpenAI providers only support the chat completions API.
	UseChatCompletions bool `mapstructure:"use_chat_completions"`

	// Whether the provider supports streamed agent events.
	Streaming bool `mapstructure:"streaming"`
}

// ModelsConfig routes each agent role to a model name
type ModelsConfig struct {
	Clarifier string `mapstructure:"clarifier"`
	Planner   string `mapstructure:"planner"`
	Search    string `mapstructure:"search"`
	Writer    string `mapstructure:"writer"`
	Triage    string `mapstructure:"triage"`
	Knowledge string `mapstructure:"knowledge"`
	Research  string `mapstructure:"research"`
}

// AssistantConfig contains real-estate assistant settings
type AssistantConfig struct {
	VectorStoreIDs []string `mapstructure:"vector_store_ids"`
	MaxKBResults   int64    `mapstructure:"max_kb_results"`
}

// ResearchConfig contains research pipeline settings
type ResearchConfig struct {
	MaxClarifyRounds int           `mapstructure:"max_clarify_rounds"`
	ContextSummaries int           `mapstructure:"context_summaries"`
	WriterStatusTick time.Duration `mapstructure:"writer_status_tick"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SQLiteConfig contains the runtime session-memory database location
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LogFile      string `mapstructure:"log_file"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("advisor_config")
		viper.SetConfigType("json")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ADVISOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional - defaults plus env cover a local run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DSN builds the Postgres connection string, or "" when postgres is not configured.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	if p.Host == "" || p.DBName == "" {
		return ""
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// Addr returns the host:port address of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.listen", ":10002")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("provider.name", "openai")
	viper.SetDefault("provider.timeout", "2m")
	viper.SetDefault("provider.streaming", true)

	viper.SetDefault("models.clarifier", "gpt-4o-mini")
	viper.SetDefault("models.planner", "gpt-4o")
	viper.SetDefault("models.search", "gpt-4o")
	viper.SetDefault("models.writer", "o4-mini")
	viper.SetDefault("models.triage", "gpt-4o")
	viper.SetDefault("models.knowledge", "gpt-4o-mini")
	viper.SetDefault("models.research", "o4-mini-deep-research")

	viper.SetDefault("assistant.max_kb_results", 3)

	viper.SetDefault("research.max_clarify_rounds", 3)
	viper.SetDefault("research.context_summaries", 3)
	viper.SetDefault("research.writer_status_tick", "5s")

	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", 6379)
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.timeout", "5s")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
	viper.SetDefault("storage.sqlite.path", ".db/conversations.db")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.periodic_logs", false)
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("provider.api_key", apiKey)
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		viper.Set("provider.base_url", base)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("storage.redis.password", password)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.postgres.port", p)
		}
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Provider.Name == "" {
		return fmt.Errorf("provider name must be configured")
	}

	// A missing API key is tolerated (placeholder mode), but a partial
	// provider override is not.
	if config.Provider.BaseURL != "" && config.Provider.APIKey == "" {
		return fmt.Errorf("provider base_url set without api_key")
	}

	if config.Research.MaxClarifyRounds <= 0 {
		return fmt.Errorf("research.max_clarify_rounds must be positive")
	}
	if config.Research.ContextSummaries <= 0 {
		return fmt.Errorf("research.context_summaries must be positive")
	}

	models := map[string]string{
		"clarifier": config.Models.Clarifier,
		"planner":   config.Models.Planner,
		"search":    config.Models.Search,
		"writer":    config.Models.Writer,
	}
	for role, model := range models {
		if model == "" {
			return fmt.Errorf("models.%s must be configured", role)
		}
	}

	return nil
}

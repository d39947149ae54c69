package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/career-mentor/internal/archive"
)

const (
	app       = "career-mentor"
	envPrefix = "MENTOR"
)

type Config struct {
	Server       *ServerConfig   `mapstructure:"server"`
	Database     *DatabaseConfig `mapstructure:"database"`
	TaxonomyFile string          `mapstructure:"taxonomy-file"`
	RolesFile    string          `mapstructure:"roles-file"`
	LLM          *LLMConfig      `mapstructure:"llm"`
	Cache        *CacheConfig    `mapstructure:"cache"`
	Archive      *ArchiveConfig  `mapstructure:"archive"`
	Events       *EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Addr        string  `mapstructure:"addr"`
	MaxUploadMB int     `mapstructure:"max-upload-mb"`
	RateLimit   float64 `mapstructure:"rate-limit"`
	RateBurst   int     `mapstructure:"rate-burst"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type LLMConfig struct {
	Provider     string          `mapstructure:"provider"`
	Temperature  float64         `mapstructure:"temperature"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	MaxRetries   int             `mapstructure:"max-retries"`
	MaxLogLength int             `mapstructure:"max-log-length"`
	Gemini       *ProviderConfig `mapstructure:"gemini"`
	OpenAI       *ProviderConfig `mapstructure:"openai"`
	Anthropic    *ProviderConfig `mapstructure:"anthropic"`
}

type ProviderConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
	MaxTokens  int    `mapstructure:"max-tokens"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ArchiveConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	S3      archive.S3Config `mapstructure:"s3"`
}

type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp-url"`
	Exchange string `mapstructure:"exchange"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "career-mentor analyzes a CV against a target role and suggests a learning roadmap and projects",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is career-mentor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("database-url", "", "postgres:// URL or SQLite path (default data/career-mentor.db)")
	rootCmd.PersistentFlags().String("llm-provider", "", "text generation provider: gemini, openai, anthropic or none")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))

	setDefaults()

	// Unprefixed deployment variables are honoured next to the prefixed ones.
	for key, names := range map[string][]string{
		"database.url":        {"MENTOR_DATABASE_URL", "DATABASE_URL"},
		"llm.provider":        {"MENTOR_LLM_PROVIDER", "LLM_PROVIDER"},
		"llm.gemini.model":    {"MENTOR_LLM_GEMINI_MODEL", "GEMINI_MODEL"},
		"llm.openai.model":    {"MENTOR_LLM_OPENAI_MODEL", "OPENAI_MODEL"},
		"llm.openai.base-url": {"MENTOR_LLM_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
		"llm.anthropic.model": {"MENTOR_LLM_ANTHROPIC_MODEL", "ANTHROPIC_MODEL"},
		"cache.redis-url":     {"MENTOR_CACHE_REDIS_URL", "REDIS_URL"},
		"events.amqp-url":     {"MENTOR_EVENTS_AMQP_URL", "RABBITMQ_URL"},
	} {
		if err := viper.BindEnv(append([]string{key}, names...)...); err != nil {
			log.Fatalf("binding %s environment variables: %v", key, err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults() {
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.max-upload-mb", 10)
	viper.SetDefault("server.rate-limit", 2.0)
	viper.SetDefault("server.rate-burst", 5)
	viper.SetDefault("database.url", "")
	viper.SetDefault("taxonomy-file", "")
	viper.SetDefault("roles-file", "")

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max-retries", 3)
	viper.SetDefault("llm.max-log-length", 200)
	for _, p := range []string{"gemini", "openai", "anthropic"} {
		viper.SetDefault("llm."+p+".api-key", "")
		viper.SetDefault("llm."+p+".api-key-file", "")
		viper.SetDefault("llm."+p+".model", "")
		viper.SetDefault("llm."+p+".base-url", "")
		viper.SetDefault("llm."+p+".max-tokens", 0)
	}

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis-url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	viper.SetDefault("archive.enabled", false)
	for _, k := range []string{"bucket", "prefix", "region", "endpoint", "access-key", "secret-key"} {
		viper.SetDefault("archive.s3."+k, "")
	}
	viper.SetDefault("archive.s3.path-style", false)

	viper.SetDefault("events.amqp-url", "")
	viper.SetDefault("events.exchange", "career_mentor")
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

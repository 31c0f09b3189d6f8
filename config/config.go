package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	WebPort                 int           `mapstructure:"WEB_PORT"`
	MongoURI                string        `mapstructure:"MONGO_URI"`
	MongoDatabase           string        `mapstructure:"MONGO_DATABASE"`
	PostgresDSN             string        `mapstructure:"POSTGRES_DSN"`
	LLMHost                 string        `mapstructure:"LLM_HOST"`
	LLMAPIKey               string        `mapstructure:"LLM_API_KEY"`
	LLMModel                string        `mapstructure:"LLM_MODEL"`
	LLMRequestTimeout       time.Duration `mapstructure:"LLM_REQUEST_TIMEOUT"`
	StoreQueryTimeout       time.Duration `mapstructure:"STORE_QUERY_TIMEOUT"`
	MaxRetries              int           `mapstructure:"MAX_RETRIES"`
	RetryDelaySeconds       time.Duration `mapstructure:"RETRY_DELAY_SECONDS"`
	LLMBackoffMaxSeconds    time.Duration `mapstructure:"LLM_BACKOFF_MAX_SECONDS"`
	LLMBackoffJitterRatio   float64       `mapstructure:"LLM_BACKOFF_JITTER_RATIO"`
	SchemaFieldCap          int           `mapstructure:"SCHEMA_FIELD_CAP"`
	SchemaCharBudget        int           `mapstructure:"SCHEMA_CHAR_BUDGET"`
	SchemaExpandCollection  string        `mapstructure:"SCHEMA_EXPAND_COLLECTION"`
	HistoryWindow           int           `mapstructure:"HISTORY_WINDOW"`
	DataQueryKeywords       []string      `mapstructure:"DATA_QUERY_KEYWORDS"`
	BusinessCodeFields      []string      `mapstructure:"BUSINESS_CODE_FIELDS"`
	MatchThreshold          float64       `mapstructure:"MATCH_THRESHOLD"`
	CustomerMatchThreshold  float64       `mapstructure:"CUSTOMER_MATCH_THRESHOLD"`
	MatchBlockingThreshold  int           `mapstructure:"MATCH_BLOCKING_THRESHOLD"`
	CatalogPath             string        `mapstructure:"CATALOG_PATH"`
	SessionCacheSize        int           `mapstructure:"SESSION_CACHE_SIZE"`
	CleanupEnabled          bool          `mapstructure:"CLEANUP_ENABLED"`
	CleanupInterval         time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	SessionRetentionAge     time.Duration `mapstructure:"SESSION_RETENTION_AGE"`
	RateLimitMessagesPerMin int           `mapstructure:"RATE_LIMIT_MESSAGES_PER_MIN"`
	RateLimitBurstSize      int           `mapstructure:"RATE_LIMIT_BURST_SIZE"`
}

// DefaultDataQueryKeywords gate the query path: a question must mention at least
// one of them before a database query is attempted.
var DefaultDataQueryKeywords = []string{
	"trip", "trips", "tripplanner", "fleet", "fleets", "vehicle", "vehicles",
	"driver", "drivers", "customer", "customers", "status", "odometer",
	"delivery", "deliveries", "sale", "sales", "order", "orders", "plate",
	"how many", "count", "list", "show", "total", "scheduled", "completed",
	"ongoing", "cancelled", "assigned", "verified", "rejected", "recalled",
	"interrupted", "malfunctioned", "package",
}

func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // For running locally
	viper.AddConfigPath("../")      // For running from docker subdir
	viper.AddConfigPath("./config") // Common config folder
	viper.AutomaticEnv()

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WEB_PORT", 8501)
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017/")
	viper.SetDefault("MONGO_DATABASE", "DRS")
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("LLM_HOST", "https://generativelanguage.googleapis.com/v1beta/openai")
	viper.SetDefault("LLM_API_KEY", "")
	viper.SetDefault("LLM_MODEL", "gemini-2.0-flash")
	viper.SetDefault("LLM_REQUEST_TIMEOUT", 60)
	viper.SetDefault("STORE_QUERY_TIMEOUT", 15)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("LLM_BACKOFF_MAX_SECONDS", 20)
	viper.SetDefault("LLM_BACKOFF_JITTER_RATIO", 0.1)
	viper.SetDefault("SCHEMA_FIELD_CAP", 20)
	viper.SetDefault("SCHEMA_CHAR_BUDGET", 5000)
	viper.SetDefault("SCHEMA_EXPAND_COLLECTION", "tripplanners")
	viper.SetDefault("HISTORY_WINDOW", 5)
	viper.SetDefault("DATA_QUERY_KEYWORDS", DefaultDataQueryKeywords)
	viper.SetDefault("BUSINESS_CODE_FIELDS", []string{"package_code"})
	viper.SetDefault("MATCH_THRESHOLD", 80)
	viper.SetDefault("CUSTOMER_MATCH_THRESHOLD", 70)
	viper.SetDefault("MATCH_BLOCKING_THRESHOLD", 500)
	viper.SetDefault("CATALOG_PATH", "materials.xlsx")
	viper.SetDefault("SESSION_CACHE_SIZE", 1024)
	viper.SetDefault("CLEANUP_ENABLED", true)
	viper.SetDefault("CLEANUP_INTERVAL", 24)
	viper.SetDefault("SESSION_RETENTION_AGE", 168)
	viper.SetDefault("RATE_LIMIT_MESSAGES_PER_MIN", 20)
	viper.SetDefault("RATE_LIMIT_BURST_SIZE", 5)

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	config.DataQueryKeywords = normalizeList(config.DataQueryKeywords, true)
	config.BusinessCodeFields = normalizeList(config.BusinessCodeFields, false)
	if len(config.DataQueryKeywords) == 0 {
		config.DataQueryKeywords = DefaultDataQueryKeywords
	}

	// Convert seconds/hours to proper time.Duration
	config.LLMRequestTimeout = config.LLMRequestTimeout * time.Second
	config.StoreQueryTimeout = config.StoreQueryTimeout * time.Second
	config.RetryDelaySeconds = config.RetryDelaySeconds * time.Second
	config.LLMBackoffMaxSeconds = config.LLMBackoffMaxSeconds * time.Second
	config.CleanupInterval = config.CleanupInterval * time.Hour
	config.SessionRetentionAge = config.SessionRetentionAge * time.Hour

	return &config
}

// normalizeList trims entries and drops blanks. Env vars arrive as a single
// comma-separated string, so those are split as well.
func normalizeList(values []string, lower bool) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if lower {
				part = strings.ToLower(part)
			}
			if part != "" {
				cleaned = append(cleaned, part)
			}
		}
	}
	return cleaned
}

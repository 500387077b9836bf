package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Matcher    MatcherConfig
	Cache      CacheConfig
	Location   LocationConfig
	AI         AIConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Logging    LoggingConfig

	// Warnings collects malformed environment values that fell back to defaults
	Warnings []string
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	GinMode         string
	AllowedOrigins  string
	AllowedMethods  string
	AllowedHeaders  string
	ShutdownTimeout time.Duration
}

// SearchConfig holds request limits for the HTTP layer
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
	CatalogLimit int
}

// MatcherConfig holds the semantic matcher thresholds
type MatcherConfig struct {
	SimilarityFloor  float64
	RankTopK         int
	MaxResults       int
	EmbedConcurrency int
}

// CacheConfig holds embedding cache settings
type CacheConfig struct {
	TTL      time.Duration
	KeyChars int
}

// LocationConfig holds the location resolver dataset and thresholds
type LocationConfig struct {
	GazetteerPath  string // empty uses the bundled Kenya dataset
	FuzzyTolerance float64
	MinTokenLength int
	RegionalScore  float64
	AcceptScore    float64
}

// AIConfig selects the embedding and intent provider
type AIConfig struct {
	Provider string // openai | gemini
	Timeout  time.Duration
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // Model for intent extraction
	ChatTemperature     float64
	ChatMaxTokens       int
	EmbeddingModel      string // Model for embeddings
	EmbeddingDimensions int
	Enabled             bool
}

// GeminiConfig holds Google Gemini API configuration
type GeminiConfig struct {
	APIKey          string
	APIBase         string // empty uses the public Gemini endpoint
	ChatModel       string
	ChatTemperature float64
	EmbeddingModel  string
	Enabled         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	l := &loader{}
	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                l.getEnv("DATABASE_URL", l.getEnv("PG_DSN", "")),
			Host:               l.getEnv("PG_HOST", "localhost"),
			Port:               l.getEnvAsInt("PG_PORT", 5432),
			User:               l.getEnv("PG_USER", "postgres"),
			Password:           l.getEnv("PG_PASSWORD", ""),
			Database:           l.getEnv("PG_DATABASE", "property_marketplace"),
			SSLMode:            l.getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     l.getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: l.getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:            l.getEnvAsInt("SERVER_PORT", 8080),
			Host:            l.getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:         l.getEnv("GIN_MODE", "release"),
			AllowedOrigins:  l.getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods:  l.getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:  l.getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
			ShutdownTimeout: l.getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			DefaultLimit: l.getEnvAsInt("SEARCH_DEFAULT_LIMIT", 10),
			MaxLimit:     l.getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			CatalogLimit: l.getEnvAsInt("SEARCH_CATALOG_LIMIT", 100),
		},
		Matcher: MatcherConfig{
			SimilarityFloor:  l.getEnvAsFloat("MATCH_SIMILARITY_FLOOR", 0.5),
			RankTopK:         l.getEnvAsInt("MATCH_RANK_TOP_K", 10),
			MaxResults:       l.getEnvAsInt("MATCH_MAX_RESULTS", 5),
			EmbedConcurrency: l.getEnvAsInt("MATCH_EMBED_CONCURRENCY", 8),
		},
		Cache: CacheConfig{
			TTL:      l.getEnvAsDuration("EMBED_CACHE_TTL", time.Hour),
			KeyChars: l.getEnvAsInt("EMBED_CACHE_KEY_CHARS", 100),
		},
		Location: LocationConfig{
			GazetteerPath:  l.getEnv("GAZETTEER_PATH", ""),
			FuzzyTolerance: l.getEnvAsFloat("LOCATION_FUZZY_TOLERANCE", 0.3),
			MinTokenLength: l.getEnvAsInt("LOCATION_MIN_TOKEN_LEN", 4),
			RegionalScore:  l.getEnvAsFloat("LOCATION_REGIONAL_SCORE", 0.9),
			AcceptScore:    l.getEnvAsFloat("LOCATION_ACCEPT_SCORE", 0.7),
		},
		AI: AIConfig{
			Provider: strings.ToLower(l.getEnv("AI_PROVIDER", "openai")),
			Timeout:  l.getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:              l.getEnv("OPENAI_API_KEY", ""),
			APIBase:             l.getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           l.getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     l.getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.3),
			ChatMaxTokens:       l.getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 1024),
			EmbeddingModel:      l.getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: l.getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 0),
			Enabled:             l.getEnv("OPENAI_API_KEY", "") != "",
		},
		Gemini: GeminiConfig{
			APIKey:          l.getEnv("GEMINI_API_KEY", ""),
			APIBase:         l.getEnv("GEMINI_API_BASE", ""),
			ChatModel:       l.getEnv("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
			ChatTemperature: l.getEnvAsFloat("GEMINI_CHAT_TEMPERATURE", 0.3),
			EmbeddingModel:  l.getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Enabled:         l.getEnv("GEMINI_API_KEY", "") != "",
		},
		Logging: LoggingConfig{
			Level:  l.getEnv("LOG_LEVEL", "info"),
			Format: l.getEnv("LOG_FORMAT", "json"),
		},
	}
	cfg.Warnings = l.warnings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Search.DefaultLimit > 0, "SEARCH_DEFAULT_LIMIT must be positive")
	check(c.Search.MaxLimit >= c.Search.DefaultLimit, "SEARCH_MAX_LIMIT must be >= SEARCH_DEFAULT_LIMIT")
	check(c.Search.CatalogLimit > 0, "SEARCH_CATALOG_LIMIT must be positive")
	check(inUnit(c.Matcher.SimilarityFloor), "MATCH_SIMILARITY_FLOOR must be within [0,1]")
	check(c.Matcher.RankTopK > 0, "MATCH_RANK_TOP_K must be positive")
	check(c.Matcher.MaxResults > 0, "MATCH_MAX_RESULTS must be positive")
	check(c.Matcher.EmbedConcurrency > 0, "MATCH_EMBED_CONCURRENCY must be positive")
	check(c.Cache.TTL > 0, "EMBED_CACHE_TTL must be positive")
	check(c.Cache.KeyChars > 0, "EMBED_CACHE_KEY_CHARS must be positive")
	check(inUnit(c.Location.FuzzyTolerance), "LOCATION_FUZZY_TOLERANCE must be within [0,1]")
	check(c.Location.MinTokenLength > 0, "LOCATION_MIN_TOKEN_LEN must be positive")
	check(inUnit(c.Location.RegionalScore), "LOCATION_REGIONAL_SCORE must be within [0,1]")
	check(inUnit(c.Location.AcceptScore), "LOCATION_ACCEPT_SCORE must be within [0,1]")
	check(c.AI.Provider == "openai" || c.AI.Provider == "gemini", "AI_PROVIDER must be openai or gemini, got %q", c.AI.Provider)
	check(c.AI.Timeout > 0, "AI_TIMEOUT must be positive")
	check(c.Logging.Format == "json" || c.Logging.Format == "console", "LOG_FORMAT must be json or console, got %q", c.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// AIEnabled reports whether the selected provider has credentials
func (c *Config) AIEnabled() bool {
	if c.AI.Provider == "gemini" {
		return c.Gemini.Enabled
	}
	return c.OpenAI.Enabled
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// AllowedOrigins splits the comma separated CORS origins
func (c *Config) AllowedOrigins() []string {
	return splitList(c.Server.AllowedOrigins)
}

// AllowedMethods splits the comma separated CORS methods
func (c *Config) AllowedMethods() []string {
	return splitList(c.Server.AllowedMethods)
}

// AllowedHeaders splits the comma separated CORS headers
func (c *Config) AllowedHeaders() []string {
	return splitList(c.Server.AllowedHeaders)
}

// Helper functions

type loader struct {
	warnings []string
}

func (l *loader) getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		l.warnf("invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		l.warnf("invalid float value for %s, using default %g", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func (l *loader) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		l.warnf("invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func (l *loader) warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

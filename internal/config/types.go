package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Logging        LoggingConfig         `yaml:"logging"`
	AI             AIConfig              `yaml:"ai"`
	History        HistoryConfig         `yaml:"history"`
	Feedback       FeedbackConfig        `yaml:"feedback"`
	Storage        StorageConfig         `yaml:"storage"`
	Metrics        MetricsConfig         `yaml:"metrics"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// AIConfig selects the LLM provider per generation task.
type AIConfig struct {
	Providers             []AIProvider       `yaml:"providers"`
	QuestionModel         *AIModelAssignment `yaml:"question_model,omitempty"`
	QuickFeedbackModel    *AIModelAssignment `yaml:"quick_feedback_model,omitempty"`
	DetailedFeedbackModel *AIModelAssignment `yaml:"detailed_feedback_model,omitempty"`
	Timeout               time.Duration      `yaml:"-"`
	MaxOutputTokens       int                `yaml:"max_output_tokens"`
}

type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic | OpenRouter
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// HistoryConfig controls the per-user question ledger.
type HistoryConfig struct {
	RetentionDays       int           `yaml:"retention_days"`
	RecentLimit         int           `yaml:"recent_limit"`
	ReferenceLimit      int           `yaml:"reference_limit"`
	DiversityMaxItems   int           `yaml:"diversity_max_items"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	FilterDuplicates    bool          `yaml:"filter_duplicates"`
	SweepInterval       time.Duration `yaml:"-"`
}

// Retention is the lifetime of a history entry.
func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type FeedbackConfig struct {
	GenerationTimeout time.Duration `yaml:"-"`
	AsyncDetailed     bool          `yaml:"async_detailed"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enable          bool   `yaml:"enable"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type RateLimitConfig struct {
	GeneratePerMinute int `yaml:"generate_per_minute"`
}

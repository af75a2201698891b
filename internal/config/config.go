package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	DSN                string             `yaml:"dsn"`
	DatabaseURL        string             `yaml:"database_url"`
	RedisURL           string             `yaml:"redis_url"`
	Database           rawDatabaseConfig  `yaml:"database"`
	Redis              rawRedisConfig     `yaml:"redis"`
	Env                string             `yaml:"env"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	JWTSecret          string             `yaml:"jwt_secret"`
	Logging            rawLoggingConfig   `yaml:"logging"`
	LogDir             string             `yaml:"log_dir"`
	AI                 rawAIConfig        `yaml:"ai"`
	History            rawHistoryConfig   `yaml:"history"`
	Feedback           rawFeedbackConfig  `yaml:"feedback"`
	Storage            StorageConfig      `yaml:"storage"`
	Metrics            rawMetricsConfig   `yaml:"metrics"`
	RateLimit          rawRateLimitConfig `yaml:"rate_limit"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawLoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type rawAIConfig struct {
	Providers             []AIProvider       `yaml:"providers"`
	QuestionModel         *AIModelAssignment `yaml:"question_model"`
	QuickFeedbackModel    *AIModelAssignment `yaml:"quick_feedback_model"`
	DetailedFeedbackModel *AIModelAssignment `yaml:"detailed_feedback_model"`
	Timeout               string             `yaml:"timeout"`
	MaxOutputTokens       int                `yaml:"max_output_tokens"`
}

type rawHistoryConfig struct {
	RetentionDays       *int     `yaml:"retention_days"`
	RecentLimit         *int     `yaml:"recent_limit"`
	ReferenceLimit      *int     `yaml:"reference_limit"`
	DiversityMaxItems   *int     `yaml:"diversity_max_items"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	FilterDuplicates    *bool    `yaml:"filter_duplicates"`
	SweepInterval       string   `yaml:"sweep_interval"`
}

type rawFeedbackConfig struct {
	GenerationTimeout string `yaml:"generation_timeout"`
	AsyncDetailed     *bool  `yaml:"async_detailed"`
}

type rawMetricsConfig struct {
	Enable *bool  `yaml:"enable"`
	Path   string `yaml:"path"`
}

type rawRateLimitConfig struct {
	GeneratePerMinute *int `yaml:"generate_per_minute"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w in %q", err, path)
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.History.RetentionDays < 1 {
		return fmt.Errorf("invalid history.retention_days %d, expected >= 1", c.History.RetentionDays)
	}
	if c.History.RecentLimit < 1 || c.History.ReferenceLimit < 1 {
		return fmt.Errorf("invalid history limits %d/%d, expected >= 1", c.History.RecentLimit, c.History.ReferenceLimit)
	}
	if c.History.DiversityMaxItems < 1 {
		return fmt.Errorf("invalid history.diversity_max_items %d, expected >= 1", c.History.DiversityMaxItems)
	}
	if t := c.History.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("invalid history.similarity_threshold %v, expected (0, 1]", t)
	}
	if c.RateLimit.GeneratePerMinute < 0 {
		return fmt.Errorf("invalid rate_limit.generate_per_minute %d, expected >= 0", c.RateLimit.GeneratePerMinute)
	}
	if c.Storage.S3.Enable && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage.s3.enable is true")
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
		AI: AIConfig{
			Timeout:         defaultAITimeout,
			MaxOutputTokens: DefaultAIMaxOutputTokens,
		},
		History: HistoryConfig{
			RetentionDays:       defaultRetentionDays,
			RecentLimit:         defaultRecentLimit,
			ReferenceLimit:      defaultReferenceLimit,
			DiversityMaxItems:   defaultDiversityMaxItems,
			SimilarityThreshold: defaultSimilarityThreshold,
			FilterDuplicates:    true,
			SweepInterval:       defaultSweepInterval,
		},
		Feedback: FeedbackConfig{
			GenerationTimeout: defaultGenerationTimeout,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region: defaultS3Region,
				Prefix: defaultS3Prefix,
			},
		},
		Metrics: MetricsConfig{
			Enable: true,
			Path:   defaultMetricsPath,
		},
		RateLimit: RateLimitConfig{
			GeneratePerMinute: defaultGeneratePerMinute,
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}

	if v := strings.TrimSpace(raw.Logging.Level); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.Logging.Dir); v != "" {
		cfg.Logging.Dir = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Logging.Dir = v
	}

	if err := applyRawAIConfig(&cfg.AI, raw.AI); err != nil {
		return err
	}
	if err := applyRawHistoryConfig(&cfg.History, raw.History); err != nil {
		return err
	}
	if v := strings.TrimSpace(raw.Feedback.GenerationTimeout); v != "" {
		d, err := parseDuration("feedback.generation_timeout", v)
		if err != nil {
			return err
		}
		cfg.Feedback.GenerationTimeout = d
	}
	if raw.Feedback.AsyncDetailed != nil {
		cfg.Feedback.AsyncDetailed = *raw.Feedback.AsyncDetailed
	}

	cfg.Storage.S3 = applyRawS3Config(cfg.Storage.S3, raw.Storage.S3)

	if raw.Metrics.Enable != nil {
		cfg.Metrics.Enable = *raw.Metrics.Enable
	}
	if v := strings.TrimSpace(raw.Metrics.Path); v != "" {
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		cfg.Metrics.Path = v
	}
	if raw.RateLimit.GeneratePerMinute != nil {
		cfg.RateLimit.GeneratePerMinute = *raw.RateLimit.GeneratePerMinute
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}
	return cfg
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = normalizeRedisRawURL(v)
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = normalizeRedisRawURL(v)
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	return cfg
}

func applyRawAIConfig(cfg *AIConfig, raw rawAIConfig) error {
	if raw.Providers != nil {
		providers := make([]AIProvider, 0, len(raw.Providers))
		for _, p := range raw.Providers {
			p.ID = strings.TrimSpace(p.ID)
			p.Type = strings.TrimSpace(p.Type)
			p.APIKey = strings.TrimSpace(p.APIKey)
			p.Endpoint = strings.TrimSpace(p.Endpoint)
			p.DefaultModel = strings.TrimSpace(p.DefaultModel)
			if p.ID == "" {
				p.ID = strings.ToLower(p.Type)
			}
			providers = append(providers, p)
		}
		cfg.Providers = providers
	}
	cfg.QuestionModel = normalizeAssignment(raw.QuestionModel)
	cfg.QuickFeedbackModel = normalizeAssignment(raw.QuickFeedbackModel)
	cfg.DetailedFeedbackModel = normalizeAssignment(raw.DetailedFeedbackModel)
	if v := strings.TrimSpace(raw.Timeout); v != "" {
		d, err := parseDuration("ai.timeout", v)
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	if raw.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = raw.MaxOutputTokens
	}
	return nil
}

func applyRawHistoryConfig(cfg *HistoryConfig, raw rawHistoryConfig) error {
	if raw.RetentionDays != nil {
		cfg.RetentionDays = *raw.RetentionDays
	}
	if raw.RecentLimit != nil {
		cfg.RecentLimit = *raw.RecentLimit
	}
	if raw.ReferenceLimit != nil {
		cfg.ReferenceLimit = *raw.ReferenceLimit
	}
	if raw.DiversityMaxItems != nil {
		cfg.DiversityMaxItems = *raw.DiversityMaxItems
	}
	if raw.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *raw.SimilarityThreshold
	}
	if raw.FilterDuplicates != nil {
		cfg.FilterDuplicates = *raw.FilterDuplicates
	}
	if v := strings.TrimSpace(raw.SweepInterval); v != "" {
		d, err := parseDuration("history.sweep_interval", v)
		if err != nil {
			return err
		}
		cfg.SweepInterval = d
	}
	return nil
}

func applyRawS3Config(current S3Config, raw S3Config) S3Config {
	cfg := current
	cfg.Enable = raw.Enable
	cfg.PathStyle = raw.PathStyle
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(raw.Bucket); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(raw.AccessKeyID); v != "" {
		cfg.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.SecretAccessKey); v != "" {
		cfg.SecretAccessKey = v
	}
	if v := strings.TrimSpace(raw.Prefix); v != "" {
		cfg.Prefix = strings.TrimLeft(v, "/")
	}
	return cfg
}

func normalizeAssignment(a *AIModelAssignment) *AIModelAssignment {
	if a == nil {
		return nil
	}
	out := AIModelAssignment{
		ProviderID: strings.TrimSpace(a.ProviderID),
		Model:      strings.TrimSpace(a.Model),
	}
	if out.ProviderID == "" && out.Model == "" {
		return nil
	}
	return &out
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q, expected a positive duration", field, raw)
	}
	return d, nil
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// LogDir resolves the log directory against the executable directory.
func (c *AppConfig) LogDir() string {
	target := defaultLogDir
	if c != nil && strings.TrimSpace(c.Logging.Dir) != "" {
		target = strings.TrimSpace(c.Logging.Dir)
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(executableDir(), target))
}

func executableDir() string {
	exe, err := os.Executable()
	if err == nil && strings.TrimSpace(exe) != "" {
		if resolved, resolveErr := filepath.EvalSymlinks(exe); resolveErr == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		return wd
	}
	return "."
}

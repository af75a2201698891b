package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "interview"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultLogLevel   = "info"
	defaultLogDir     = "logs"

	defaultAITimeout         = 60 * time.Second
	DefaultAIMaxOutputTokens = 2048

	defaultRetentionDays       = 30
	defaultRecentLimit         = 100
	defaultReferenceLimit      = 50
	defaultDiversityMaxItems   = 30
	defaultSimilarityThreshold = 0.7
	defaultSweepInterval       = time.Hour

	defaultGenerationTimeout = 90 * time.Second
	defaultGeneratePerMinute = 20

	defaultMetricsPath = "/metrics"
	defaultS3Region    = "us-east-1"
	defaultS3Prefix    = "references/"
)

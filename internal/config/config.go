package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Slack      SlackConfig
	Ledger     LedgerConfig
	Score      ScoreConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// SlackConfig holds operator alert delivery settings.
type SlackConfig struct {
	BotToken     string
	AlertChannel string
}

// LedgerConfig holds audit ledger settings. The master key derives the
// per-tenant signing keys; retention bounds how long entries must be kept
// before the purge job may remove them.
type LedgerConfig struct {
	MasterKey string //nolint:gosec // G117: signing key config
	Retention time.Duration
}

// ScoreConfig holds the compliance score weighting and the lazy recompute
// debounce window.
type ScoreConfig struct {
	Weights  domain.ScoreWeights
	Debounce time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production, sensitive
// values (JWT secret, ledger master key, DB password) must be set
// explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("VERITRAIL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("VERITRAIL_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("VERITRAIL_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("VERITRAIL_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("VERITRAIL_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("VERITRAIL_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// Electronic-record rules commonly require seven years of retention.
	retention, err := getEnvDuration("VERITRAIL_AUDIT_RETENTION", 7*365*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	debounce, err := getEnvDuration("VERITRAIL_SCORE_DEBOUNCE", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	weights, err := loadWeights()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("VERITRAIL_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("VERITRAIL_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("VERITRAIL_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("VERITRAIL_DB_USER", "veritrail"),
			Password: getEnv("VERITRAIL_DB_PASSWORD", ""),
			DBName:   getEnv("VERITRAIL_DB_NAME", "veritrail_dev"),
			SSLMode:  getEnv("VERITRAIL_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("VERITRAIL_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VERITRAIL_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:    getEnv("VERITRAIL_JWT_SECRET", ""),
			AccessTTL: accessTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("VERITRAIL_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Slack: SlackConfig{
			BotToken:     getEnv("VERITRAIL_SLACK_BOT_TOKEN", ""),
			AlertChannel: getEnv("VERITRAIL_SLACK_ALERT_CHANNEL", ""),
		},
		Ledger: LedgerConfig{
			MasterKey: getEnv("VERITRAIL_LEDGER_MASTER_KEY", ""),
			Retention: retention,
		},
		Score: ScoreConfig{
			Weights:  weights,
			Debounce: debounce,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func loadWeights() (domain.ScoreWeights, error) {
	defaults := domain.DefaultScoreWeights()

	reqApproval, err := getEnvFloat("VERITRAIL_SCORE_W_REQ_APPROVAL", defaults.RequirementApproval)
	if err != nil {
		return domain.ScoreWeights{}, err
	}
	coverage, err := getEnvFloat("VERITRAIL_SCORE_W_COVERAGE", defaults.Coverage)
	if err != nil {
		return domain.ScoreWeights{}, err
	}
	testApproval, err := getEnvFloat("VERITRAIL_SCORE_W_TEST_APPROVAL", defaults.TestApproval)
	if err != nil {
		return domain.ScoreWeights{}, err
	}
	runPass, err := getEnvFloat("VERITRAIL_SCORE_W_RUN_PASS", defaults.RunPass)
	if err != nil {
		return domain.ScoreWeights{}, err
	}

	return domain.ScoreWeights{
		RequirementApproval: reqApproval,
		Coverage:            coverage,
		TestApproval:        testApproval,
		RunPass:             runPass,
	}, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("VERITRAIL_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("VERITRAIL_JWT_SECRET must be at least 32 characters")
	}

	if c.Ledger.MasterKey == "" {
		return errors.New("VERITRAIL_LEDGER_MASTER_KEY is required")
	}
	if len(c.Ledger.MasterKey) < 32 {
		return errors.New("VERITRAIL_LEDGER_MASTER_KEY must be at least 32 bytes")
	}
	if c.Ledger.Retention <= 0 {
		return fmt.Errorf("VERITRAIL_AUDIT_RETENTION must be positive, got %s", c.Ledger.Retention)
	}

	for name, w := range map[string]float64{
		"VERITRAIL_SCORE_W_REQ_APPROVAL":  c.Score.Weights.RequirementApproval,
		"VERITRAIL_SCORE_W_COVERAGE":      c.Score.Weights.Coverage,
		"VERITRAIL_SCORE_W_TEST_APPROVAL": c.Score.Weights.TestApproval,
		"VERITRAIL_SCORE_W_RUN_PASS":      c.Score.Weights.RunPass,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", name, w)
		}
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("VERITRAIL_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("VERITRAIL_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("VERITRAIL_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("VERITRAIL_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("VERITRAIL_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("VERITRAIL_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

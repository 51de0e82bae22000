package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/domain"
)

const (
	testJWTSecret = "test-secret-that-is-at-least-32ch"
	testMasterKey = "test-master-key-at-least-32-bytes"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("VERITRAIL_JWT_SECRET", testJWTSecret)
	t.Setenv("VERITRAIL_LEDGER_MASTER_KEY", testMasterKey)
}

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "VERITRAIL_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "VERITRAIL_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "VERITRAIL_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VERITRAIL_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "VERITRAIL_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "VERITRAIL_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "returns fallback for empty string", key: "VERITRAIL_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "VERITRAIL_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "VERITRAIL_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback float64
		want     float64
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VERITRAIL_TEST_FLT_UNSET", setVal: nil, fallback: 0.3, want: 0.3},
		{name: "parses fraction", key: "VERITRAIL_TEST_FLT_FRAC", setVal: strPtr("0.25"), fallback: 0, want: 0.25},
		{name: "parses zero", key: "VERITRAIL_TEST_FLT_ZERO", setVal: strPtr("0"), fallback: 0.5, want: 0},
		{name: "parses one", key: "VERITRAIL_TEST_FLT_ONE", setVal: strPtr("1"), fallback: 0, want: 1},
		{name: "errors on non-numeric", key: "VERITRAIL_TEST_FLT_NAN", setVal: strPtr("heavy"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvFloat(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "VERITRAIL_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "VERITRAIL_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses composite", key: "VERITRAIL_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "errors on invalid", key: "VERITRAIL_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "VERITRAIL_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("VERITRAIL_LEDGER_MASTER_KEY", testMasterKey)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VERITRAIL_JWT_SECRET")
}

func TestLoad_MissingMasterKey(t *testing.T) {
	t.Setenv("VERITRAIL_JWT_SECRET", testJWTSecret)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "VERITRAIL_LEDGER_MASTER_KEY")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		// DB_PORT parse and bounds errors
		{name: "DB_PORT not a number", envKey: "VERITRAIL_DB_PORT", envVal: "abc", errMsg: "VERITRAIL_DB_PORT"},
		{name: "DB_PORT zero", envKey: "VERITRAIL_DB_PORT", envVal: "0", errMsg: "VERITRAIL_DB_PORT"},
		{name: "DB_PORT too high", envKey: "VERITRAIL_DB_PORT", envVal: "65536", errMsg: "VERITRAIL_DB_PORT"},

		// DB_MAX_CONNS
		{name: "DB_MAX_CONNS zero", envKey: "VERITRAIL_DB_MAX_CONNS", envVal: "0", errMsg: "VERITRAIL_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS negative", envKey: "VERITRAIL_DB_MAX_CONNS", envVal: "-5", errMsg: "VERITRAIL_DB_MAX_CONNS"},

		// JWT TTL
		{name: "JWT_ACCESS_TTL invalid", envKey: "VERITRAIL_JWT_ACCESS_TTL", envVal: "badval", errMsg: "VERITRAIL_JWT_ACCESS_TTL"},
		{name: "JWT_ACCESS_TTL zero", envKey: "VERITRAIL_JWT_ACCESS_TTL", envVal: "0s", errMsg: "VERITRAIL_JWT_ACCESS_TTL"},

		// Server timeouts
		{name: "SERVER_READ_TIMEOUT invalid", envKey: "VERITRAIL_SERVER_READ_TIMEOUT", envVal: "notduration", errMsg: "VERITRAIL_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envKey: "VERITRAIL_SERVER_WRITE_TIMEOUT", envVal: "0s", errMsg: "VERITRAIL_SERVER_WRITE_TIMEOUT"},

		// Redis DB
		{name: "REDIS_DB not a number", envKey: "VERITRAIL_REDIS_DB", envVal: "abc", errMsg: "VERITRAIL_REDIS_DB"},

		// Retention
		{name: "AUDIT_RETENTION invalid", envKey: "VERITRAIL_AUDIT_RETENTION", envVal: "forever", errMsg: "VERITRAIL_AUDIT_RETENTION"},
		{name: "AUDIT_RETENTION zero", envKey: "VERITRAIL_AUDIT_RETENTION", envVal: "0s", errMsg: "VERITRAIL_AUDIT_RETENTION"},

		// Score weights
		{name: "score weight not a number", envKey: "VERITRAIL_SCORE_W_COVERAGE", envVal: "heavy", errMsg: "VERITRAIL_SCORE_W_COVERAGE"},
		{name: "score weight above one", envKey: "VERITRAIL_SCORE_W_RUN_PASS", envVal: "1.5", errMsg: "VERITRAIL_SCORE_W_RUN_PASS"},
		{name: "score weight negative", envKey: "VERITRAIL_SCORE_W_REQ_APPROVAL", envVal: "-0.1", errMsg: "VERITRAIL_SCORE_W_REQ_APPROVAL"},

		// Self-hosted
		{name: "SELF_HOSTED not a bool", envKey: "VERITRAIL_SELF_HOSTED", envVal: "yes", errMsg: "VERITRAIL_SELF_HOSTED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Always set required secrets so failures come from the var under test.
			setRequired(t)
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// Only the required secrets are set; everything else uses defaults.
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "veritrail", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Equal(t, "veritrail_dev", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	// Redis defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	// JWT defaults.
	assert.Equal(t, testJWTSecret, cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)

	// Server defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Slack defaults.
	assert.Empty(t, cfg.Slack.BotToken)
	assert.Empty(t, cfg.Slack.AlertChannel)

	// Ledger defaults: seven years of retention.
	assert.Equal(t, testMasterKey, cfg.Ledger.MasterKey)
	assert.Equal(t, 7*365*24*time.Hour, cfg.Ledger.Retention)

	// Score defaults.
	assert.InDelta(t, 0.3, cfg.Score.Weights.RequirementApproval, 1e-12)
	assert.InDelta(t, 0.3, cfg.Score.Weights.Coverage, 1e-12)
	assert.InDelta(t, 0.2, cfg.Score.Weights.TestApproval, 1e-12)
	assert.InDelta(t, 0.2, cfg.Score.Weights.RunPass, 1e-12)
	assert.Equal(t, 2*time.Second, cfg.Score.Debounce)

	// Self-hosted default.
	assert.False(t, cfg.SelfHosted)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		// Database
		"VERITRAIL_DB_HOST":      "db.prod.internal",
		"VERITRAIL_DB_PORT":      "5433",
		"VERITRAIL_DB_USER":      "prod_user",
		"VERITRAIL_DB_PASSWORD":  "s3cret!",
		"VERITRAIL_DB_NAME":      "veritrail_prod",
		"VERITRAIL_DB_SSLMODE":   "require",
		"VERITRAIL_DB_MAX_CONNS": "50",
		// Redis
		"VERITRAIL_REDIS_ADDR":     "redis.prod:6380",
		"VERITRAIL_REDIS_PASSWORD": "redis-pass",
		"VERITRAIL_REDIS_DB":       "3",
		// JWT
		"VERITRAIL_JWT_SECRET":     "prod-jwt-secret-256-bits-long!!!",
		"VERITRAIL_JWT_ACCESS_TTL": "30m",
		// Server
		"VERITRAIL_SERVER_ADDR":          ":9090",
		"VERITRAIL_SERVER_READ_TIMEOUT":  "5s",
		"VERITRAIL_SERVER_WRITE_TIMEOUT": "15s",
		"VERITRAIL_CORS_ORIGINS":         "https://app.example.com, https://admin.example.com",
		// Slack
		"VERITRAIL_SLACK_BOT_TOKEN":     "xoxb-test",
		"VERITRAIL_SLACK_ALERT_CHANNEL": "#compliance-ops",
		// Ledger
		"VERITRAIL_LEDGER_MASTER_KEY": "prod-master-key-that-is-32-bytes!",
		"VERITRAIL_AUDIT_RETENTION":   "87600h", // ten years
		// Score
		"VERITRAIL_SCORE_W_REQ_APPROVAL":  "0.4",
		"VERITRAIL_SCORE_W_COVERAGE":      "0.4",
		"VERITRAIL_SCORE_W_TEST_APPROVAL": "0.1",
		"VERITRAIL_SCORE_W_RUN_PASS":      "0.1",
		"VERITRAIL_SCORE_DEBOUNCE":        "500ms",
		// Self-hosted
		"VERITRAIL_SELF_HOSTED": "true",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database
	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "prod_user", cfg.Database.User)
	assert.Equal(t, "s3cret!", cfg.Database.Password)
	assert.Equal(t, "veritrail_prod", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxConns)

	// Redis
	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)

	// JWT
	assert.Equal(t, "prod-jwt-secret-256-bits-long!!!", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)

	// Server
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)

	// Slack
	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "#compliance-ops", cfg.Slack.AlertChannel)

	// Ledger
	assert.Equal(t, "prod-master-key-that-is-32-bytes!", cfg.Ledger.MasterKey)
	assert.Equal(t, 87600*time.Hour, cfg.Ledger.Retention)

	// Score
	assert.InDelta(t, 0.4, cfg.Score.Weights.RequirementApproval, 1e-12)
	assert.InDelta(t, 0.4, cfg.Score.Weights.Coverage, 1e-12)
	assert.InDelta(t, 0.1, cfg.Score.Weights.TestApproval, 1e-12)
	assert.InDelta(t, 0.1, cfg.Score.Weights.RunPass, 1e-12)
	assert.Equal(t, 500*time.Millisecond, cfg.Score.Debounce)

	// Self-hosted
	assert.True(t, cfg.SelfHosted)
}

// ---------------------------------------------------------------------------
// DSN() output format
// ---------------------------------------------------------------------------

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "default dev values",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "veritrail",
				Password: "", DBName: "veritrail_dev", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=veritrail password= dbname=veritrail_dev sslmode=disable",
		},
		{
			name: "production values",
			cfg: DatabaseConfig{
				Host: "db.prod", Port: 5433, User: "admin",
				Password: "p@ss!", DBName: "veritrail_prod", SSLMode: "require",
			},
			want: "host=db.prod port=5433 user=admin password=p@ss! dbname=veritrail_prod sslmode=require",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	// validBase returns a Config that passes validation.
	validBase := func() *Config {
		return &Config{
			Database: DatabaseConfig{Port: 5432, MaxConns: 25},
			JWT: JWTConfig{
				Secret:    testJWTSecret,
				AccessTTL: 15 * time.Minute,
			},
			Server: ServerConfig{
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			Ledger: LedgerConfig{
				MasterKey: testMasterKey,
				Retention: 7 * 365 * 24 * time.Hour,
			},
			Score: ScoreConfig{
				Weights: domain.DefaultScoreWeights(),
			},
			SelfHosted: true,
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validBase().validate())
	})

	t.Run("empty JWT secret fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = ""
		assert.ErrorContains(t, c.validate(), "VERITRAIL_JWT_SECRET")
	})

	t.Run("JWT secret too short fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = "only-31-characters-long-secret!"
		assert.ErrorContains(t, c.validate(), "VERITRAIL_JWT_SECRET")
	})

	t.Run("master key too short fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Ledger.MasterKey = "short-key"
		assert.ErrorContains(t, c.validate(), "VERITRAIL_LEDGER_MASTER_KEY")
	})

	t.Run("zero retention fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Ledger.Retention = 0
		assert.ErrorContains(t, c.validate(), "VERITRAIL_AUDIT_RETENTION")
	})

	t.Run("weight above one fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Score.Weights.Coverage = 1.2
		assert.ErrorContains(t, c.validate(), "VERITRAIL_SCORE_W_COVERAGE")
	})

	t.Run("negative weight fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Score.Weights.RunPass = -0.2
		assert.ErrorContains(t, c.validate(), "VERITRAIL_SCORE_W_RUN_PASS")
	})

	t.Run("port 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 0
		assert.ErrorContains(t, c.validate(), "VERITRAIL_DB_PORT")
	})

	t.Run("port 65536 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 65536
		assert.ErrorContains(t, c.validate(), "VERITRAIL_DB_PORT")
	})

	t.Run("MaxConns 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.MaxConns = 0
		assert.ErrorContains(t, c.validate(), "VERITRAIL_DB_MAX_CONNS")
	})

	t.Run("AccessTTL 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.AccessTTL = 0
		assert.ErrorContains(t, c.validate(), "VERITRAIL_JWT_ACCESS_TTL")
	})

	t.Run("ReadTimeout negative fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.ReadTimeout = -time.Second
		assert.ErrorContains(t, c.validate(), "VERITRAIL_SERVER_READ_TIMEOUT")
	})

	t.Run("WriteTimeout 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.WriteTimeout = 0
		assert.ErrorContains(t, c.validate(), "VERITRAIL_SERVER_WRITE_TIMEOUT")
	})
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}

package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredStorageEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_BUCKET_NAME", "propchat-attachments")
	t.Setenv("S3_ENDPOINT", "https://storage.example.com")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	req := require.New(t)
	setRequiredStorageEnv(t)
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal("development", cfg.Environment)
	req.Equal(8080, cfg.Port)
	req.Equal(30*time.Second, cfg.HeartbeatInterval)
	req.Equal(60*time.Second, cfg.HeartbeatWindow())
	req.NotEmpty(cfg.JWTSecret)
	req.NotEmpty(cfg.DatabaseDSN)
	req.Empty(cfg.AllowedOrigins)
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	req := require.New(t)
	setRequiredStorageEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	req.Error(err)

	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("DATABASE_URL", "")
	_, err = LoadConfig()
	req.Error(err)

	t.Setenv("DATABASE_URL", "postgres://chat:pw@db:5432/propchat")
	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal("production", cfg.Environment)
}

func TestLoadConfig_AllowedOriginsParsing(t *testing.T) {
	req := require.New(t)
	setRequiredStorageEnv(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ALLOWED_ORIGINS", " https://app.example.com, https://staging.example.com ,")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal([]string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConfig_RejectsBadValues(t *testing.T) {
	req := require.New(t)
	setRequiredStorageEnv(t)
	t.Setenv("ENVIRONMENT", "development")

	t.Setenv("PORT", "80")
	_, err := LoadConfig()
	req.Error(err)

	t.Setenv("PORT", "8080")
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "2")
	_, err = LoadConfig()
	req.Error(err)
}

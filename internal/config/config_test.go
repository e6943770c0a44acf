package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 72*time.Hour, cfg.Workflow.ApprovalSLA)
	assert.Equal(t, "veto", cfg.Workflow.RejectionPolicy)
	assert.Equal(t, 100, cfg.Workflow.MaxBatchSize)
	assert.Equal(t, 6, cfg.OTP.CodeLength)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Database.DSN(), "dbname=cartable")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("WORKFLOW_APPROVAL_SLA", "24h")
	t.Setenv("WORKFLOW_REJECTION_POLICY", "quorum")
	t.Setenv("WORKFLOW_MANAGER_GATE", "true")
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Workflow.ApprovalSLA)
	assert.Equal(t, "quorum", cfg.Workflow.RejectionPolicy)
	assert.True(t, cfg.Workflow.ManagerGate)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET_KEY=file-secret\nOTP_CODE_LENGTH=8\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.JWT.SecretKey)
	assert.Equal(t, 8, cfg.OTP.CodeLength)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.JWT.SecretKey)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret_key")

	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("WORKFLOW_REJECTION_POLICY", "majority")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejection_policy")
}

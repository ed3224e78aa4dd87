package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/mirror-engine/pkg/apperrors"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOURCE_DB_HOST", "source.internal")
	t.Setenv("SOURCE_DB_USER", "mirror")
	t.Setenv("SOURCE_DB_PASSWORD", "src-secret")
	t.Setenv("SOURCE_DB_NAME", "inventory")
	t.Setenv("TARGET_DB_HOST", "target.internal")
	t.Setenv("TARGET_DB_USER", "mirror")
	t.Setenv("TARGET_DB_PASSWORD", "tgt-secret")
	t.Setenv("TARGET_DB_NAME", "inventory_mirror")
	t.Setenv("TABLE_NAME", "products")
}

func TestLoad_AllRequired(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "source.internal", cfg.Source.Host)
	assert.Equal(t, 3306, cfg.Source.Port)
	assert.Equal(t, "inventory_mirror", cfg.Target.Database)
	assert.Equal(t, "products", cfg.TableName)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3, cfg.ConnectRetries)
}

func TestLoad_MissingParameters(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOURCE_DB_HOST", "")
	t.Setenv("TABLE_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingConfig)
	assert.Contains(t, err.Error(), "SOURCE_DB_HOST")
	assert.Contains(t, err.Error(), "TABLE_NAME")
}

func TestLoad_TargetPasswordMayBeEmptyButMustBeSet(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_DB_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err, "explicitly empty target password is valid")
	assert.Equal(t, "", cfg.Target.Password)
}

func TestValidate_TargetPasswordUnset(t *testing.T) {
	t.Setenv("TARGET_DB_PASSWORD", "") // register restore, then unset
	os.Unsetenv("TARGET_DB_PASSWORD")

	cfg := &Config{
		Source:    DatabaseConfig{Host: "a", User: "u", Password: "p", Database: "d"},
		Target:    DatabaseConfig{Host: "b", User: "u", Database: "d"},
		TableName: "products",
		BatchSize: 500,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingConfig))
	assert.Contains(t, err.Error(), "TARGET_DB_PASSWORD")
}

func TestValidate_BatchSize(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg.BatchSize = -5
	assert.Error(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOURCE_DB_PORT", "3307")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("CONNECT_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3307, cfg.Source.Port)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VARWEAVE_COVARIANT_NAME",
		"VARWEAVE_CONTRAVARIANT_NAME",
		"VARWEAVE_KEY_FILE",
		"VARWEAVE_SIGN",
		"VARWEAVE_LEDGER",
		"VARWEAVE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestEnvOverrides_Markers(t *testing.T) {
	clearEnv(t)
	t.Setenv("VARWEAVE_COVARIANT_NAME", "Acme.Out")
	t.Setenv("VARWEAVE_CONTRAVARIANT_NAME", "Acme.In")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "Acme.Out", cfg.Markers.Covariant)
	assert.Equal(t, "Acme.In", cfg.Markers.Contravariant)
}

func TestEnvOverrides_Signing(t *testing.T) {
	t.Run("key file enables signing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VARWEAVE_KEY_FILE", "/keys/acme.pem")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Signing.Enabled)
		assert.Equal(t, "/keys/acme.pem", cfg.Signing.KeyFile)
	})

	t.Run("VARWEAVE_SIGN wins over key file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VARWEAVE_KEY_FILE", "/keys/acme.pem")
		t.Setenv("VARWEAVE_SIGN", "false")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Signing.Enabled)
	})

	t.Run("VARWEAVE_SIGN accepts 1", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VARWEAVE_SIGN", "1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Signing.Enabled)
	})
}

func TestEnvOverrides_Ledger(t *testing.T) {
	t.Run("path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VARWEAVE_LEDGER", "/tmp/runs.db")

		cfg := DefaultConfig()
		cfg.Ledger.Enabled = false
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Ledger.Enabled)
		assert.Equal(t, "/tmp/runs.db", cfg.Ledger.Path)
	})

	t.Run("off", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VARWEAVE_LEDGER", "off")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Ledger.Enabled)
	})
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("VARWEAVE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_EmptyLeavesFileValues(t *testing.T) {
	clearEnv(t)

	cfg := &Config{Markers: MarkersConfig{Covariant: "FromFile"}}
	cfg.applyEnvOverrides()

	assert.Equal(t, "FromFile", cfg.Markers.Covariant)
	assert.False(t, cfg.Signing.Enabled)
}

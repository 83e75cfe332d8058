package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Model != "nano-banana-pro-preview" {
		t.Errorf("expected default model, got %s", cfg.LLM.Model)
	}
	if cfg.Pipeline.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Paths.Visuals != filepath.Join("generated", "visuals") {
		t.Errorf("unexpected visuals path %s", cfg.Paths.Visuals)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GARDEN_MODEL", "")
	t.Setenv("GARDEN_ROOT", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, DefaultConfigFile)

	cfg := DefaultConfig()
	cfg.Root = ""
	cfg.LLM.APIKey = "file-key"
	cfg.Pipeline.MaxRetries = 5
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", loaded.LLM.APIKey)
	assert.Equal(t, 5, loaded.Pipeline.MaxRetries)
	assert.Equal(t, tmpDir, loaded.Root)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	tmpDir := t.TempDir()

	cfg, err := Load(filepath.Join(tmpDir, DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, tmpDir, cfg.Root)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
}

func TestLoad_RelativeRootResolvedAgainstConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("root: garden\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "garden"), cfg.Root)
	assert.Equal(t, filepath.Join(tmpDir, "garden", "ref", "space"), cfg.Path(cfg.Paths.Space))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-process")
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0644))

	cfg, err := Load(filepath.Join(tmpDir, DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GARDEN_MODEL", "gemini-test")
	t.Setenv("GARDEN_ROOT", "/srv/garden")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-test", cfg.LLM.Model)
	assert.Equal(t, "/srv/garden", cfg.Root)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Pipeline.MaxRetries = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_GetRetryDelay(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Second, cfg.GetRetryDelay())

	cfg.Pipeline.RetryDelay = "0s"
	assert.Equal(t, time.Duration(0), cfg.GetRetryDelay())

	cfg.Pipeline.RetryDelay = "soon"
	assert.Equal(t, 2*time.Second, cfg.GetRetryDelay())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	assert.True(t, c.IsCategoryEnabled("verify"))

	c.Categories = map[string]bool{"verify": false}
	assert.False(t, c.IsCategoryEnabled("verify"))
	assert.True(t, c.IsCategoryEnabled("generate"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_ADDRESS", "ENVIRONMENT", "TABLE_NAME",
		"BINDING_DIRECT_RADIUS", "BINDING_CORRECTIVE_RADIUS", "COLLAB_CHANGE_COOLDOWN",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "archsync", cfg.DynamoDBTable)
	assert.Equal(t, float64(100), cfg.Binding.DirectRadius)
	assert.Equal(t, float64(50), cfg.Binding.CorrectiveRadius)
	assert.Equal(t, 500*time.Millisecond, cfg.Collab.ChangeCooldown)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("TABLE_NAME", "archsync-staging")
	t.Setenv("BINDING_DIRECT_RADIUS", "150")
	t.Setenv("COLLAB_CHANGE_COOLDOWN", "250ms")
	t.Setenv("ENABLE_METRICS", "false")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "archsync-staging", cfg.DynamoDBTable)
	assert.Equal(t, float64(150), cfg.Binding.DirectRadius)
	assert.Equal(t, 250*time.Millisecond, cfg.Collab.ChangeCooldown)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadConfig_ProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveRadii(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		Binding:     BindingConfig{DirectRadius: 0, CorrectiveRadius: 50},
	}

	assert.Error(t, cfg.Validate())
}

func TestApplyFile_OverlaysTuningSections(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"binding:\n  directRadius: 120\n  correctiveRadius: 40\ncollab:\n  changeCooldown: 750ms\n"), 0o644))

	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, float64(120), cfg.Binding.DirectRadius)
	assert.Equal(t, float64(40), cfg.Binding.CorrectiveRadius)
	assert.Equal(t, 750*time.Millisecond, cfg.Collab.ChangeCooldown)
	// Sections the file does not set keep their environment values.
	assert.Equal(t, 256, cfg.Collab.SendBufferSize)
}

func TestApplyFile_PartialCollabOverlay(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collab:\n  sendBufferSize: 512\n"), 0o644))

	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, 512, cfg.Collab.SendBufferSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Collab.ChangeCooldown)
}

func TestApplyFile_MissingFileFails(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestApplyFile_MalformedYAMLFails(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binding: ["), 0o644))

	assert.Error(t, cfg.ApplyFile(path))
}

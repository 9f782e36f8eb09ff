package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	violations := Validate(cfg)
	assert.Empty(t, violations, "default config must be valid: %v", violations)
}

func TestLoadOverlaysYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(yamlPath, []byte("instrument: NQ\nmax_contracts: 5\n"), 0o644))

	t.Setenv("MAX_CONTRACTS", "2")
	t.Setenv("BROKER_API_KEY", "")

	cfg, err := Load(yamlPath, dir+"/missing.env")
	require.NoError(t, err)
	assert.Equal(t, "NQ", cfg.Instrument)
	assert.Equal(t, 2, cfg.MaxContracts, "env var overrides YAML file")
}

func TestValidateCatchesEveryViolation(t *testing.T) {
	cfg := Config{}
	violations := Validate(cfg)
	assert.NotEmpty(t, violations)

	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["instrument"])
	assert.True(t, fields["account_size"])
	assert.True(t, fields["max_contracts"])
}

func TestLiveBrokerRequiresAPIKey(t *testing.T) {
	cfg := Default()
	cfg.DryRun = false
	cfg.BrokerType = "live"
	cfg.BrokerAPIKey = ""
	violations := Validate(cfg)
	found := false
	for _, v := range violations {
		if v.Field == "broker_api_key" {
			found = true
		}
	}
	assert.True(t, found)
}

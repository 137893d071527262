package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mcdev12/slapboard/go/internal/leagues/ipl"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slapboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "br", cfg.DocumentID)
	assert.Equal(t, "ipl", cfg.League.Enabled)
	assert.Equal(t, 600*time.Millisecond, cfg.Reaction.ImpactDuration)
	assert.Equal(t, 0.5, cfg.Reaction.SoundChance)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
league:
  enabled: ipl
  plugins:
    ipl:
      baselines:
        csk: 10
document_id: final
reaction:
  reveal_duration: 2s
assets:
  base_url: https://cdn.example.com/slaps/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "final", cfg.DocumentID)
	assert.Equal(t, 2*time.Second, cfg.Reaction.RevealDuration)
	assert.Equal(t, 600*time.Millisecond, cfg.Reaction.ImpactDuration, "unset fields keep defaults")
	assert.Equal(t, "https://cdn.example.com/slaps/rcb1.webp", cfg.AssetURL("/rcb1.webp"))

	roster, err := cfg.Roster()
	require.NoError(t, err)
	assert.Equal(t, tally.Counts{"rcb": 1000, "mi": 900, "csk": 10}, roster.Baseline())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "reaction: [\n"},
		{"sound chance", "reaction:\n  sound_chance: 2\n"},
		{"empty document", "document_id: \"\"\n"},
		{"subject token", "document_id: a.b\n"},
		{"recipient", "submission:\n  recipient: nobody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestAssetURL_NoBase(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/sounds/mi1.mp3", cfg.AssetURL("/sounds/mi1.mp3"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "America/Sao_Paulo", cfg.Timezone)
	require.Equal(t, "Pessoal", cfg.PersonalCategory)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadPartialFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: Europe/Lisbon
week_start: Sunday
sources:
  - name: work
    path: /tmp/work.ics
  - url: https://example.com/cal.ics
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Europe/Lisbon", cfg.Timezone)
	require.Equal(t, "sunday", cfg.WeekStart)
	require.Equal(t, time.Sunday, cfg.WeekStartDay())
	require.Equal(t, "Pessoal", cfg.PersonalCategory)
	require.Equal(t, "work", cfg.Sources[0].ID)
	require.Equal(t, "https://example.com/cal.ics", cfg.Sources[1].ID)
	require.NoError(t, cfg.Validate())

	srcs := cfg.ICSSources()
	require.Len(t, srcs, 2)
	require.Equal(t, "/tmp/work.ics", srcs[0].Path)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Sources = []SourceConfig{{ID: "empty"}}
	require.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.PersonalCategory = "Personal"
	cfg.BasicAuth = &BasicAuthConfig{Username: "me", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

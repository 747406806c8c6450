package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/cadence/pkg/cadence"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := DefaultPath(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptional_MissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, &File{}, cfg)
	require.Equal(t, cadence.Defaults(), cfg.CadencesOrDefault())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
wait: spin
processes: 3
cadences:
  - label: tick
    count: 10
    delay_ms: 2.5
  - label: tock
    count: 1
    delay_ms: 0
`)
	cfg, err := LoadOptional(path)
	require.NoError(t, err)
	require.Equal(t, "spin", cfg.Wait)
	require.Equal(t, 3, cfg.Processes)
	require.Equal(t, []cadence.Cadence{
		{Label: "tick", Count: 10, DelayMS: 2.5},
		{Label: "tock", Count: 1, DelayMS: 0},
	}, cfg.CadencesOrDefault())
}

func TestLoadFromFile_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"bad yaml":        "cadences: [",
		"bad wait":        "wait: nap\n",
		"negative procs":  "processes: -1\n",
		"zero count":      "cadences:\n  - label: a\n    count: 0\n",
		"negative delay":  "cadences:\n  - label: a\n    count: 1\n    delay_ms: -5\n",
		"missing label":   "cadences:\n  - count: 1\n",
		"duplicate label": "cadences:\n  - label: a\n    count: 1\n  - label: a\n    count: 2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"

	"github.com/go-go-golems/cadence/pkg/cadence"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".cadence.yaml"

type File struct {
	Wait      string            `yaml:"wait,omitempty"` // "sleep" | "spin"
	Processes int               `yaml:"processes,omitempty"`
	Cadences  []cadence.Cadence `yaml:"cadences,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func (f *File) Validate() error {
	if _, err := cadence.ParseWaitMode(f.Wait); err != nil {
		return err
	}
	if f.Processes < 0 {
		return errors.New("processes must be >= 0")
	}
	seen := map[string]bool{}
	for _, c := range f.Cadences {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Label] {
			return errors.Errorf("duplicate cadence label %q", c.Label)
		}
		seen[c.Label] = true
	}
	return nil
}

// CadencesOrDefault returns the configured cadences, or the fast/slow pair.
func (f *File) CadencesOrDefault() []cadence.Cadence {
	if len(f.Cadences) == 0 {
		return cadence.Defaults()
	}
	return f.Cadences
}

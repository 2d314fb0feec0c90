package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantpipe/tsaccess/pkg/errors"
)

// Load reads a YAML file, substitutes ${VAR} references from the
// environment, and unmarshals it over the package defaults, so a partial
// file only overrides what it names. Validation is left to the caller
// (client.New validates) so flag or environment overrides can still be
// applied on top of the loaded values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the caller's flag or env
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "read config file")
	}

	cfg := New("")
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse config file")
	}
	return cfg, nil
}

// Save writes the config as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "write config file")
	}
	return nil
}

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string. Bare $VAR is left alone so
// passwords in connection URLs survive.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			return content
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			return content
		}
		end += start
		content = content[:start] + os.Getenv(content[start+2:end]) + content[end+1:]
	}
}

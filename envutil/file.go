package envutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFileType is returned when the file extension is not recognized.
var ErrUnknownFileType = errors.New("env file doesn't have a known file suffix")

// LoadEnvFile loads environment variables from a file and returns them as a map.
// The file format is automatically detected based on the file extension:
//   - .env files are parsed as key=value pairs (one per line)
//   - .json files are expected to have an "env" field containing string key-value pairs
//   - .yml/.yaml files are expected to have an "env" field containing string key-value pairs
//
// Use Apply to export the result into the process environment.
func LoadEnvFile(path string) (map[string]string, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(fileInfo.Name())

	switch {
	case strings.HasSuffix(name, ".env"):
		return loadEnvFile(path)
	case strings.HasSuffix(name, ".json"):
		return loadJSONFile(path)
	case strings.HasSuffix(name, ".yml"), strings.HasSuffix(name, ".yaml"):
		return loadYAMLFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFileType, fileInfo.Name())
	}
}

// loadEnvFile parses KEY=VALUE lines, including quoting, comments and export
// statements.
func loadEnvFile(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// jsonEnvFile represents the expected structure of a JSON environment file.
// The JSON file must have an "env" field containing a map of string key-value pairs.
//
// Example JSON file:
//
//	{
//	  "env": {
//	    "LOG_JSON": "true",
//	    "LOG_LEVEL": "debug"
//	  }
//	}
type jsonEnvFile struct {
	Env map[string]string `json:"env"`
}

// loadJSONFile parses a JSON file and extracts environment variables from the "env" field.
// The JSON file must contain a top-level "env" object with string key-value pairs.
// Returns an error if the file cannot be read or parsed as valid JSON.
func loadJSONFile(path string) (map[string]string, error) {
	bts, err := os.ReadFile(path) // #nosec G304 -- path is the intended file to load
	if err != nil {
		return nil, err
	}

	out := &jsonEnvFile{}

	err = json.Unmarshal(bts, &out)
	if err != nil {
		return nil, err
	}

	return out.Env, nil
}

// yamlEnvFile represents the expected structure of a YAML environment file.
// The YAML file must have an "env" field containing a map of string key-value pairs.
//
// Example YAML file:
//
//	env:
//	  OTEL_ENABLED: "true"
//	  OTEL_SERVICE_NAME: orders
type yamlEnvFile struct {
	Env map[string]string `yaml:"env"`
}

// loadYAMLFile parses a YAML file and extracts environment variables from the "env" field.
// The YAML file must contain a top-level "env" object with string key-value pairs.
// Returns an error if the file cannot be read or parsed as valid YAML.
func loadYAMLFile(path string) (map[string]string, error) {
	bts, err := os.ReadFile(path) // #nosec G304 -- path is the intended file to load
	if err != nil {
		return nil, err
	}

	env := &yamlEnvFile{}

	err = yaml.Unmarshal(bts, &env)
	if err != nil {
		return nil, err
	}

	return env.Env, nil
}

// Apply exports the given variables into the process environment, in key
// order. Variables that are already set are left alone unless overwrite is true.
func Apply(env map[string]string, overwrite bool) error {
	for _, key := range slices.Sorted(maps.Keys(env)) {
		if _, exists := os.LookupEnv(key); exists && !overwrite {
			continue
		}

		if err := os.Setenv(key, env[key]); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	return nil
}

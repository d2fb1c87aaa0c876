// Package config loads YAML configuration files with environment expansion
// and optional validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves
// after decoding.
type Validator interface {
	Validate() error
}

// Load reads filename and decodes it into target with Parse. A missing file
// is reported as an error wrapping os.ErrNotExist.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := Parse(data, target); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}
	return nil
}

// Parse expands environment references in data, decodes it into target and
// runs target's Validate method if it has one.
//
// Decoding is strict: a key that matches no field is an error. Keys absent
// from data leave target's current values in place, so defaults can be set
// before calling Parse. An empty document is valid.
func Parse[T any](data []byte, target *T) error {
	expanded, err := ExpandEnv(string(data))
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode: %w", err)
	}
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid: %w", err)
		}
	}
	return nil
}

// ExpandEnv substitutes $VAR and ${VAR} from the environment. Inside braces,
// ${VAR:-default} falls back to default when VAR is unset or empty, and
// ${VAR:?message} fails with message instead.
func ExpandEnv(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(key string) string {
		if name, def, ok := strings.Cut(key, ":-"); ok {
			if v := os.Getenv(name); v != "" {
				return v
			}
			return def
		}
		if name, msg, ok := strings.Cut(key, ":?"); ok {
			if v := os.Getenv(name); v != "" {
				return v
			}
			if msg == "" {
				msg = "must be set"
			}
			missing = append(missing, name+" "+msg)
			return ""
		}
		return os.Getenv(key)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment: %s", strings.Join(missing, "; "))
	}
	return out, nil
}

//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// xdgDir is $env/interviewd, or ~/fallback/interviewd when $env is unset.
func xdgDir(env, fallback string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "interviewd")
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "interviewd")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// yamlBackend keeps flat dotted keys in $XDG_CONFIG_HOME/interviewd/config.yaml.
type yamlBackend struct {
	path   string
	values map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &yamlBackend{
		path:   filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml"),
		values: map[string]any{},
	}
	if err := readYAML(b.path, &b.values); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring config file: %v\n", err)
	}
	return b
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

func (b *yamlBackend) SetString(key, val string) error { return b.put(key, val) }

func (b *yamlBackend) SetInt(key string, val int) error { return b.put(key, val) }

func (b *yamlBackend) Delete(key string) error {
	delete(b.values, key)
	return writeYAML(b.path, b.values)
}

func (b *yamlBackend) put(key string, val any) error {
	b.values[key] = val
	return writeYAML(b.path, b.values)
}

// Secrets live in $XDG_DATA_HOME/interviewd/secrets.yaml as
// "service/account: value" with mode 0600.
func secretsPath() string {
	return filepath.Join(defaultDataDir(), "secrets.yaml")
}

func keychainExec(service, account string) ([]byte, error) {
	secrets := map[string]string{}
	if err := readYAML(secretsPath(), &secrets); err != nil {
		return nil, err
	}
	v, ok := secrets[service+"/"+account]
	if !ok {
		return nil, fmt.Errorf("no secret for %s", account)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	p := secretsPath()
	secrets := map[string]string{}
	if err := readYAML(p, &secrets); err != nil {
		return err
	}
	secrets[service+"/"+account] = value
	return writeYAML(p, secrets)
}

// readYAML leaves v untouched when path does not exist.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeYAML(path string, v any) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

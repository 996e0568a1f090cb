package config

import (
	"fmt"
	"strconv"
	"time"
)

// KeyInfo is one row of `interviewd config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every non-secret key with its effective value in cfg.
func ShowAll(cfg Config) []KeyInfo {
	var out []KeyInfo
	for _, s := range specs {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
		}
	}
	return out
}

func lookupSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key == key {
			return s, nil
		}
	}
	return keySpec{}, fmt.Errorf("unknown config key %q (known: %v)", key, ValidKeys())
}

// SetKey validates value against the key's type and persists it in the
// platform backend. Secrets are refused.
func SetKey(key, value string) error {
	s, err := lookupSpec(key)
	if err != nil {
		return err
	}
	if s.secret {
		return fmt.Errorf("%s is a secret: use `config set-secret %s` or %s", key, key, s.env)
	}

	b := newPlatformBackend()
	switch s.typ {
	case kInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s expects an integer: %w", key, err)
		}
		return b.SetInt(key, n)
	case kBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s expects true or false: %w", key, err)
		}
		return b.SetString(key, strconv.FormatBool(v))
	case kDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s expects a duration such as 5m: %w", key, err)
		}
	}
	return b.SetString(key, value)
}

// SetSecret stores an API key or password in the platform secret store.
func SetSecret(key, value string) error {
	s, err := lookupSpec(key)
	if err != nil {
		return err
	}
	if !s.secret {
		return fmt.Errorf("%s is not a secret: use `config set`", key)
	}
	return keychainSet(keychainService, secretAccount(key), value)
}

// SecretKeys lists the keys kept in the secret store.
func SecretKeys() []string { return keyNames(true) }

// ValidKeys lists the keys accepted by SetKey.
func ValidKeys() []string { return keyNames(false) }

func keyNames(secret bool) []string {
	var keys []string
	for _, s := range specs {
		if s.secret == secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.interviewd.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "interviewd")
	}
	return filepath.Join(home, "Library", "Application Support", "interviewd")
}

// defaultsBackend stores keys in the user defaults domain.
type defaultsBackend struct{}

func newPlatformBackend() ConfigBackend { return defaultsBackend{} }

func defaultsCmd(args ...string) *exec.Cmd {
	return exec.Command("defaults", args...)
}

func (defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := defaultsCmd("read", defaultsDomain, key).CombinedOutput()
	text := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return text, true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// Missing key.
		return "", false, nil
	default:
		return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, text)
	}
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func (defaultsBackend) SetString(key, val string) error {
	return defaultsCmd("write", defaultsDomain, key, "-string", val).Run()
}

func (defaultsBackend) SetInt(key string, val int) error {
	return defaultsCmd("write", defaultsDomain, key, "-int", strconv.Itoa(val)).Run()
}

func (defaultsBackend) Delete(key string) error {
	return defaultsCmd("delete", defaultsDomain, key).Run()
}

// Secrets go to the login keychain as generic passwords.

func keychainExec(service, account string) ([]byte, error) {
	return exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
}

func keychainSet(service, account, value string) error {
	return exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).Run()
}

//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestYAMLBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := SetKey("server.port", "7200"); err != nil {
		t.Fatalf("SetKey port: %v", err)
	}
	if err := SetKey("stream.long_timeout", "15m"); err != nil {
		t.Fatalf("SetKey timeout: %v", err)
	}
	if err := SetKey("server.mcp_stdio", "true"); err != nil {
		t.Fatalf("SetKey mcp: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "interviewd", "config.yaml")); err != nil {
		t.Fatalf("config.yaml not written: %v", err)
	}

	b := newPlatformBackend()
	if n, ok, err := b.GetInt("server.port"); err != nil || !ok || n != 7200 {
		t.Errorf("GetInt(server.port) = %d, %v, %v", n, ok, err)
	}

	clearEnv(t)
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 7200 || cfg.Stream.LongTimeout != "15m" || !cfg.Server.MCPStdio {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.Stream)
	}

	if err := b.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newPlatformBackend().GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}
}

func TestYAMLBackendBadInt(t *testing.T) {
	b := &yamlBackend{values: map[string]any{"server.port": 1.5}}
	if _, _, err := b.GetInt("server.port"); err == nil {
		t.Error("expected error for fractional port")
	}
}

func TestSecretsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	if _, err := keychainExec(keychainService, "openai_api_key"); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := SetSecret("openai.api_key", "sk-test"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	got, err := keychainReader{}.Get(keychainService, secretAccount("openai.api_key"))
	if err != nil || got != "sk-test" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	info, err := os.Stat(filepath.Join(dir, "interviewd", "secrets.yaml"))
	if err != nil {
		t.Fatalf("secrets.yaml: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets.yaml mode = %o, want 600", perm)
	}
}

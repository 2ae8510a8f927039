package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "octobot.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[webhook]
secret = "s3cr3t"

[[hosting.hosts]]
host = "github.com"
token = "tok"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backport.PoolSize != 5 {
		t.Fatalf("expected default pool size 5, got %d", cfg.Backport.PoolSize)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected default driver sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Webhook.MaxBodyBytes != 5*1024*1024 {
		t.Fatalf("expected default max body bytes, got %d", cfg.Webhook.MaxBodyBytes)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	path := writeTestConfig(t, `
[[hosting.hosts]]
host = "github.com"
token = "tok"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing webhook secret")
	}
}

func TestLoadRejectsNoHosts(t *testing.T) {
	path := writeTestConfig(t, `
[webhook]
secret = "s3cr3t"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing hosting hosts")
	}
}

func TestHostingForHost(t *testing.T) {
	cfg := HostingConfig{Hosts: []HostConfig{
		{Host: "github.com", Token: "a"},
		{Host: "git.internal.example.com", Token: "b"},
	}}

	if h, ok := cfg.ForHost("github.com"); !ok || h.Token != "a" {
		t.Fatalf("expected github.com to resolve, got %+v ok=%v", h, ok)
	}
	if _, ok := cfg.ForHost("unknown.example.com"); ok {
		t.Fatal("expected unknown host to miss")
	}
}

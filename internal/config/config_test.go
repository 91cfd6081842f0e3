package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  base_url: https://files.example.net
  reconnect_delay: 10s
transfer:
  max_upload_size: 1048576
  allowed_extensions: [pdf, txt]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "https://files.example.net" {
		t.Errorf("base_url = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.ReconnectDelay != 10*time.Second {
		t.Errorf("reconnect_delay = %v", cfg.Server.ReconnectDelay)
	}
	if cfg.Transfer.MaxUploadSize != 1<<20 {
		t.Errorf("max_upload_size = %d", cfg.Transfer.MaxUploadSize)
	}
	if len(cfg.Transfer.AllowedExtensions) != 2 {
		t.Errorf("allowed_extensions = %v", cfg.Transfer.AllowedExtensions)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.AdminRedirectDelay != 2500*time.Millisecond {
		t.Errorf("admin_redirect_delay = %v", cfg.Server.AdminRedirectDelay)
	}
	if cfg.Paths.Database != "./data/shareterm.db" {
		t.Errorf("database = %q", cfg.Paths.Database)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

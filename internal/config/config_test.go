package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHAREZONE_STATE_DIR", t.TempDir())

	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://127.0.0.1:3333" {
		t.Fatalf("server=%q", cfg.Server)
	}
	if cfg.MaxUploadBytes != 20*1024*1024 {
		t.Fatalf("max_upload_bytes=%d", cfg.MaxUploadBytes)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v", cfg.Timeout)
	}
	if cfg.DeleteRedirectDelay != time.Second {
		t.Fatalf("delete_redirect_delay=%v", cfg.DeleteRedirectDelay)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHAREZONE_STATE_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: http://file.example:1/\ntimeout: 5s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://file.example:1" {
		t.Fatalf("expected file server with trailing slash trimmed, got %q", cfg.Server)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout=%v", cfg.Timeout)
	}

	t.Setenv("SHAREZONE_SERVER", "http://env.example:2")
	cfg, err = Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://env.example:2" {
		t.Fatalf("expected env to win, got %q", cfg.Server)
	}
}

func TestLoad_FlagWins(t *testing.T) {
	t.Setenv("SHAREZONE_STATE_DIR", t.TempDir())
	t.Setenv("SHAREZONE_SERVER", "http://env.example:2")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("server", "", "")
	if err := fs.Parse([]string{"--server", "http://flag.example:3"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := Load(fs, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://flag.example:3" {
		t.Fatalf("server=%q", cfg.Server)
	}
}

func TestValidate_RejectsBadLogFormat(t *testing.T) {
	c := Config{Server: "http://x", MaxUploadBytes: 1, LogFormat: "xml"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

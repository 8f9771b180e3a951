package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMinimalFileConfig(t *testing.T) {
	path := writeConfig(t, "port: \"8080\"\ndataDir: /var/lib/reader\nlogLevel: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DataDir != "/var/lib/reader" || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "port: \"8080\"\ndataDir: /var/lib/reader\n")
	t.Setenv("READER_PORT", "9090")
	t.Setenv("READER_REDIS_ADDR", "localhost:6379")
	t.Setenv("READER_MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q, want env override", cfg.Port)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing_port", "dataDir: /tmp/x\n", "port is required"},
		{"missing_data_dir", "port: \"8080\"\n", "dataDir is required"},
		{
			"minio_without_keys",
			"port: \"8080\"\ndataDir: /tmp/x\nminioEndpoint: localhost:9000\n",
			"minioAccessKey",
		},
		{
			"minio_without_bucket",
			"port: \"8080\"\ndataDir: /tmp/x\nminioEndpoint: localhost:9000\nminioAccessKey: a\nminioSecretKey: s\n",
			"minioBucket",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestRedisSatisfiesKVRequirement(t *testing.T) {
	path := writeConfig(t, "port: \"8080\"\nredisAddr: localhost:6379\nminioEndpoint: localhost:9000\nminioAccessKey: a\nminioSecretKey: s\nminioBucket: books\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

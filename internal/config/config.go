// Package config loads the service configuration from YAML with READER_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// DataDir backs the filesystem stores when redis/minio are not set.
	DataDir string `yaml:"dataDir"`
	// TempDir stages fixed-layout payloads; empty uses the OS default.
	TempDir string `yaml:"tempDir"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
	// UploadRateLimit caps uploads per client per minute; 0 disables.
	UploadRateLimit int `yaml:"uploadRateLimit"`
	// TrustProxyHeaders lets the server key clients off X-Forwarded-For.
	// Enable only behind a proxy that strips the header from clients.
	TrustProxyHeaders bool `yaml:"trustProxyHeaders"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("READER_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("READER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("READER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("READER_TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
	if v := os.Getenv("READER_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("READER_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("READER_MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("READER_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("READER_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("READER_MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("READER_MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("READER_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("READER_UPLOAD_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UploadRateLimit = n
		}
	}
	if v := os.Getenv("READER_TRUST_PROXY_HEADERS"); v == "true" {
		cfg.TrustProxyHeaders = true
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" && cfg.DataDir == "" {
		return errors.New("config: dataDir is required when redisAddr is not set")
	}
	if cfg.MinioEndpoint == "" && cfg.DataDir == "" {
		return errors.New("config: dataDir is required when minioEndpoint is not set")
	}
	if cfg.MinioEndpoint != "" {
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minioAccessKey and minioSecretKey are required with minioEndpoint")
		}
		if cfg.MinioBucket == "" {
			return errors.New("config: minioBucket is required with minioEndpoint")
		}
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must not be negative")
	}
	if cfg.UploadRateLimit < 0 {
		return errors.New("config: uploadRateLimit must not be negative")
	}
	return nil
}

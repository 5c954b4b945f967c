// Package config loads the kanban CLI configuration from a YAML file, with
// KANBAN_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidURL         = errors.New("service url must be absolute http(s)")
	ErrInvalidConcurrency = errors.New("update_concurrency must be >= 1")
)

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether snapshot export is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

type Config struct {
	BoardsURL         string   `yaml:"boards_url"`
	AuthURL           string   `yaml:"auth_url"`
	TokenFile         string   `yaml:"token_file"`
	// UpdateConcurrency above 1 lets the position updates of one move reach
	// the backend out of order.
	UpdateConcurrency int      `yaml:"update_concurrency"`
	S3                S3Config `yaml:"s3"`
}

// DefaultPath is ~/.config/kanban/config.yml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "kanban", "config.yml")
}

func Default() Config {
	return Config{
		BoardsURL:         "http://localhost:8081",
		AuthURL:           "http://localhost:8080",
		TokenFile:         filepath.Join(filepath.Dir(DefaultPath()), "session.json"),
		UpdateConcurrency: 1,
		S3:                S3Config{Region: "us-east-1"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KANBAN_BOARDS_URL"); v != "" {
		c.BoardsURL = v
	}
	if v := os.Getenv("KANBAN_AUTH_URL"); v != "" {
		c.AuthURL = v
	}
	if v := os.Getenv("KANBAN_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("KANBAN_S3_ACCESS_KEY"); v != "" {
		c.S3.AccessKey = v
	}
	if v := os.Getenv("KANBAN_S3_SECRET_KEY"); v != "" {
		c.S3.SecretKey = v
	}
}

func (c Config) Validate() error {
	for name, raw := range map[string]string{"boards_url": c.BoardsURL, "auth_url": c.AuthURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s=%q", ErrInvalidURL, name, raw)
		}
	}
	if c.UpdateConcurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.UpdateConcurrency)
	}
	return nil
}

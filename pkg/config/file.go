package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".tabspectre.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".tabspectre.yml"
)

// FileConfig represents values loaded from a .tabspectre.yaml file. It only
// covers storage and output defaults; credentials always come from the
// environment or interactive setup.
type FileConfig struct {
	LocalDir    string `yaml:"local_dir"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	OutputDir   string `yaml:"output_dir"`
	Format      string `yaml:"format"`
	Timeout     string `yaml:"timeout"`
	PageSize    *int   `yaml:"page_size"`
	RateLimit   *int   `yaml:"rate_limit"`
	Concurrency *int   `yaml:"concurrency"`
}

// Normalize trims whitespace from string fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.LocalDir = strings.TrimSpace(fc.LocalDir)
	fc.S3Bucket = strings.TrimSpace(fc.S3Bucket)
	fc.S3Prefix = strings.TrimSpace(fc.S3Prefix)
	fc.S3Region = strings.TrimSpace(fc.S3Region)
	fc.OutputDir = strings.TrimSpace(fc.OutputDir)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
}

// Apply overlays non-empty file values onto cfg.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}
	if fc.LocalDir != "" {
		cfg.LocalDir = fc.LocalDir
	}
	if fc.S3Bucket != "" {
		cfg.S3Bucket = fc.S3Bucket
	}
	if fc.S3Prefix != "" {
		cfg.S3Prefix = fc.S3Prefix
	}
	if fc.S3Region != "" {
		cfg.S3Region = fc.S3Region
	}
	if fc.OutputDir != "" {
		cfg.OutputDir = fc.OutputDir
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if fc.Timeout != "" {
		timeout, err := ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in config file: %w", err)
		}
		cfg.HTTPTimeout = timeout
	}
	if fc.PageSize != nil {
		cfg.PageSize = *fc.PageSize
	}
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

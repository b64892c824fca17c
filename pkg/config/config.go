package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// Storage settings
	LocalDir string
	S3Bucket string
	S3Prefix string
	S3Region string

	// Output settings
	OutputDir string
	Format    string

	// REST client settings
	HTTPTimeout   time.Duration
	PageSize      int
	RetryAttempts int
	RetryDelay    time.Duration
	RateLimit     int
	Concurrency   int

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LocalDir:      "./tableau_metadata",
		S3Prefix:      "tableau_metadata/",
		S3Region:      "us-east-1",
		OutputDir:     ".",
		Format:        "json",
		HTTPTimeout:   2 * time.Minute,
		PageSize:      100,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		RateLimit:     10,
		Concurrency:   5,
		Verbose:       false,
		DryRun:        false,
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/app"
	"github.com/ppiankov/tabspectre/internal/tableau"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	var debug bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := applyConfigFile(configPath, cfg); err != nil {
				return err
			}

			cmd.Println("Storage:")
			cmd.Printf("  local_dir: %s\n", cfg.LocalDir)
			cmd.Printf("  s3_bucket: %s\n", orUnset(cfg.S3Bucket))
			cmd.Printf("  s3_prefix: %s\n", cfg.S3Prefix)
			cmd.Printf("  s3_region: %s\n", cfg.S3Region)
			cmd.Println("Output:")
			cmd.Printf("  output_dir: %s\n", cfg.OutputDir)
			cmd.Printf("  format:     %s\n", cfg.Format)
			cmd.Println("REST client:")
			cmd.Printf("  timeout:        %s\n", cfg.HTTPTimeout)
			cmd.Printf("  page_size:      %d\n", cfg.PageSize)
			cmd.Printf("  retry_attempts: %d\n", cfg.RetryAttempts)
			cmd.Printf("  retry_delay:    %s\n", cfg.RetryDelay)
			cmd.Printf("  rate_limit:     %d req/s\n", cfg.RateLimit)

			if debug {
				cmd.Println("\nEnvironment:")
				if creds, err := tableau.CredentialsFromEnv(); err == nil {
					cmd.Printf("  server_url:  %s\n", creds.ServerURL)
					cmd.Printf("  site_id:     %s\n", displaySite(creds.SiteID))
					cmd.Printf("  auth_method: %s\n", creds.Method)
				} else {
					cmd.Printf("  credentials: %v\n", err)
				}
				if dir, err := app.GetAppConfigDir(); err == nil {
					cmd.Printf("  app_dir:     %s\n", dir)
				}
				cmd.Printf("  cwd:         %s\n", mustGetwd())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Include environment diagnostics")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .tabspectre.yaml config file")
	return cmd
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}

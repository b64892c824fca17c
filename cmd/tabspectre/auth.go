package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/logging"
	"github.com/ppiankov/tabspectre/internal/tableau"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// NewAuthCmd creates the auth command group
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Configure and verify Tableau authentication",
	}
	cmd.AddCommand(newAuthSetupCmd())
	cmd.AddCommand(newAuthTestCmd())
	cmd.AddCommand(newAuthInfoCmd())
	return cmd
}

func newAuthSetupCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Set up authentication credentials",
		Long: `Walks through authentication setup and prints the environment
variables to export. Credentials are never written to disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive {
				printEnvHelp(cmd)
				return nil
			}

			creds, err := tableau.CredentialsInteractive(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			cmd.Println()
			cmd.Println("Add these to your shell profile or .env file:")
			cmd.Println()
			printExport(cmd, "TABLEAU_SERVER_URL", creds.ServerURL)
			if creds.SiteID != "" {
				printExport(cmd, "TABLEAU_SITE_ID", creds.SiteID)
			}
			switch creds.Method {
			case tableau.AuthPAT:
				printExport(cmd, "TABLEAU_TOKEN_NAME", creds.TokenName)
				printExport(cmd, "TABLEAU_TOKEN_VALUE", creds.TokenValue)
			case tableau.AuthCredentials:
				printExport(cmd, "TABLEAU_USERNAME", creds.Username)
				printExport(cmd, "TABLEAU_PASSWORD", creds.Password)
			case tableau.AuthJWT:
				printExport(cmd, "TABLEAU_JWT_TOKEN", creds.JWT)
			}
			cmd.Println()
			cmd.Println("Then verify with: tabspectre auth test")
			return nil
		},
	}

	cmd.Flags().BoolVar(&interactive, "interactive", false, "Prompt for credentials on the terminal")
	return cmd
}

func newAuthTestCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Verify that the configured credentials work",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				// The root logger is already installed by the time RunE
				// runs; reinstall it at debug level.
				logging.Init(true)
			}
			ctx := context.Background()

			cfg := config.DefaultConfig()
			client, err := connectClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			session := client.Session()
			cmd.Println("✓ Authentication successful")
			cmd.Printf("  Site:    %s\n", displaySite(session.SiteContentURL))
			cmd.Printf("  User ID: %s\n", session.UserID)

			if info, err := client.ServerInfo(ctx); err == nil {
				cmd.Printf("  Server:  %s (REST API %s)\n", info.ProductVersion.Value, info.RESTAPIVersion)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging for the test")
	return cmd
}

func newAuthInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the resolved authentication configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := tableau.CredentialsFromEnv()
			if err != nil {
				return err
			}

			cmd.Printf("Server URL: %s\n", creds.ServerURL)
			cmd.Printf("Site ID:    %s\n", displaySite(creds.SiteID))
			cmd.Printf("Method:     %s\n", creds.Method)
			switch creds.Method {
			case tableau.AuthPAT:
				cmd.Printf("Token name: %s\n", creds.TokenName)
				cmd.Printf("Token:      %s\n", mask(creds.TokenValue))
			case tableau.AuthCredentials:
				cmd.Printf("Username:   %s\n", creds.Username)
				cmd.Printf("Password:   %s\n", mask(creds.Password))
			case tableau.AuthJWT:
				cmd.Printf("JWT token:  %s\n", mask(creds.JWT))
			}
			return nil
		},
	}
}

func printEnvHelp(cmd *cobra.Command) {
	cmd.Println("Set one complete credential set (checked in this order):")
	cmd.Println()
	cmd.Println("  Personal Access Token (recommended):")
	cmd.Println("    TABLEAU_SERVER_URL, TABLEAU_TOKEN_NAME, TABLEAU_TOKEN_VALUE")
	cmd.Println()
	cmd.Println("  Username/Password:")
	cmd.Println("    TABLEAU_SERVER_URL, TABLEAU_USERNAME, TABLEAU_PASSWORD")
	cmd.Println()
	cmd.Println("  JWT (connected apps):")
	cmd.Println("    TABLEAU_SERVER_URL, TABLEAU_JWT_TOKEN")
	cmd.Println()
	cmd.Println("  Optional: TABLEAU_SITE_ID (blank for the default site)")
	cmd.Println()
	cmd.Println("Or run: tabspectre auth setup --interactive")
}

func printExport(cmd *cobra.Command, name, value string) {
	cmd.Printf("  export %s=%q\n", name, value)
}

func displaySite(site string) string {
	if site == "" {
		return "(default)"
	}
	return site
}

// mask hides a secret, keeping a short prefix for recognition.
func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

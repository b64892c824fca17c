package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/app"
	"github.com/ppiankov/tabspectre/internal/logging"
)

var (
	version    = "1.0.0"
	verbose    bool
	noColor    bool
	isFirstRun bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitAuth       = 4
	ExitNetwork    = 5
)

func main() {
	logging.Init(false)

	// Credentials may live in a .env file next to the working directory.
	_ = godotenv.Load()

	isFirstRun = app.IsFirstRun()

	root := &cobra.Command{
		Use:   "tabspectre",
		Short: "Tableau Server metadata explorer",
		Long: `TabSpectre connects to Tableau Server or Tableau Cloud, explores
published content, collects site metadata snapshots with lineage, and
exports them to JSON, CSV or Excel reports.

Credentials are read from TABLEAU_* environment variables (or a .env
file); run "tabspectre auth setup" to configure them interactively.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
			if isFirstRun && cmd.Name() != "setup" {
				slog.Warn("first run detected; use \"tabspectre auth setup\" to configure credentials")
			}
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable table styling in output")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewAuthCmd())
	root.AddCommand(NewExploreCmd())
	root.AddCommand(NewMetadataCmd())
	root.AddCommand(NewExportCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewVersionCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(classifyError(err))
	}
}

// classifyError maps the error taxonomy onto exit codes. Anything that is
// not a taxonomy error exits as internal.
func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var e *apierr.Error
	if !errors.As(err, &e) {
		if os.IsNotExist(err) {
			return ExitNotFound
		}
		return ExitInternal
	}

	switch e.Kind {
	case apierr.KindConfiguration:
		return ExitInvalidArg
	case apierr.KindAuthentication:
		return ExitAuth
	case apierr.KindConnection:
		return ExitNetwork
	case apierr.KindStorage:
		if errors.Is(err, os.ErrNotExist) {
			return ExitNotFound
		}
		return ExitInternal
	default:
		return ExitInternal
	}
}

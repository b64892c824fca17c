package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/storage"
	"github.com/ppiankov/tabspectre/internal/tableau"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// applyConfigFile overlays file values onto cfg. A custom path must exist;
// otherwise the default locations are probed and silently skipped when
// absent. CLI flags are bound directly into cfg and win because cobra sets
// them after this runs in PreRunE.
func applyConfigFile(customPath string, cfg *config.Config) error {
	if customPath != "" {
		fc, err := config.LoadFile(customPath)
		if err != nil {
			return apierr.Wrap(apierr.KindConfiguration, err, "failed to load config file")
		}
		return apierr.Wrap(apierr.KindConfiguration, fc.Apply(cfg), "invalid config file %s", customPath)
	}

	fc, path, err := config.AutoLoadFile()
	if err != nil {
		return apierr.Wrap(apierr.KindConfiguration, err, "failed to load config file")
	}
	if fc == nil {
		return nil
	}
	slog.Debug("loaded config file", slog.String("path", path))
	return apierr.Wrap(apierr.KindConfiguration, fc.Apply(cfg), "invalid config file %s", path)
}

// connectClient resolves credentials from the environment and opens a
// session. Callers own Close.
func connectClient(ctx context.Context, cfg *config.Config) (*tableau.Client, error) {
	creds, err := tableau.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	client := tableau.NewClient(creds, cfg)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// buildStorageManager registers the requested backends.
func buildStorageManager(ctx context.Context, cfg *config.Config, useLocal, useS3 bool) (*storage.Manager, error) {
	manager := storage.NewManager()
	if useLocal {
		manager.Register("local", storage.NewLocal(cfg.LocalDir))
	}
	if useS3 {
		if cfg.S3Bucket == "" {
			return nil, apierr.New(apierr.KindConfiguration, "s3 storage requires --s3-bucket or s3_bucket in the config file")
		}
		backend, err := storage.NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		manager.Register("s3", backend)
	}
	return manager, nil
}

func newTableWriter(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	if noColor {
		t.SetStyle(table.StyleDefault)
	} else {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func limitApplies(limit, seen int) bool {
	return limit > 0 && seen >= limit
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apierr.Wrap(apierr.KindMetadata, err, "failed to encode output")
	}
	cmd.Println(string(data))
	return nil
}

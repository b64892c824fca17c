package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/logging"
	"github.com/ppiankov/tabspectre/internal/models"
	"github.com/ppiankov/tabspectre/internal/storage"
)

// chdir changes the working directory for the duration of the test.
// Equivalent to t.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
}

func TestMetadataCollectPreRunValidation(t *testing.T) {
	tests := []struct {
		name         string
		format       string
		updatedSince string
		wantErr      string
	}{
		{
			name:         "valid_defaults",
			format:       "json",
			updatedSince: "",
			wantErr:      "",
		},
		{
			name:         "valid_gzip",
			format:       "json.gz",
			updatedSince: "2024-01-01",
			wantErr:      "",
		},
		{
			name:    "invalid_format",
			format:  "parquet",
			wantErr: "unknown storage format",
		},
		{
			name:         "invalid_updated_since",
			format:       "json",
			updatedSince: "last-tuesday",
			wantErr:      "invalid --updated-since",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newMetadataCollectCmd()

			if err := cmd.Flags().Set("format", tc.format); err != nil {
				t.Fatalf("failed to set format flag: %v", err)
			}
			if tc.updatedSince != "" {
				if err := cmd.Flags().Set("updated-since", tc.updatedSince); err != nil {
					t.Fatalf("failed to set updated-since flag: %v", err)
				}
			}

			err := cmd.PreRunE(cmd, nil)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestMetadataCollectAutoLoadsConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	configContent := "format: json.gz\nlocal_dir: /tmp/snapshots\npage_size: 50\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".tabspectre.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := newMetadataCollectCmd()
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected auto-loaded config file to pass validation, got %v", err)
	}
}

func TestMetadataCollectConfigFlagLoadsCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(customPath, []byte("format: json\n"), 0o644); err != nil {
		t.Fatalf("failed to write custom config file: %v", err)
	}

	cmd := newMetadataCollectCmd()
	if err := cmd.Flags().Set("config", customPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected --config path to load successfully, got %v", err)
	}
}

func TestMetadataCollectFlagsOverrideConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	// Config file carries an invalid format; the flag wins.
	if err := os.WriteFile(filepath.Join(tempDir, ".tabspectre.yaml"), []byte("format: parquet\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := newMetadataCollectCmd()
	if err := cmd.Flags().Set("format", "json"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected CLI flag to override config-file format, got %v", err)
	}
}

func TestExploreSearchTypeValidation(t *testing.T) {
	cmd := newExploreSearchCmd()
	if err := cmd.PreRunE(cmd, []string{"term"}); err != nil {
		t.Fatalf("expected default type to validate, got %v", err)
	}

	cmd = newExploreSearchCmd()
	if err := cmd.Flags().Set("type", "dashboards"); err != nil {
		t.Fatalf("failed to set type flag: %v", err)
	}
	err := cmd.PreRunE(cmd, []string{"term"})
	if err == nil || !strings.Contains(err.Error(), "invalid --type value") {
		t.Fatalf("expected invalid type error, got %v", err)
	}
	if !apierr.IsKind(err, apierr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestExportMetadataFormatValidation(t *testing.T) {
	cmd := newExportMetadataCmd()
	if err := cmd.Flags().Set("format", "pdf"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	err := cmd.PreRunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid --format value") {
		t.Fatalf("expected format validation error, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"configuration", apierr.New(apierr.KindConfiguration, "bad flag"), ExitInvalidArg},
		{"authentication", apierr.New(apierr.KindAuthentication, "sign-in failed"), ExitAuth},
		{"connection", apierr.New(apierr.KindConnection, "dial failed"), ExitNetwork},
		{"api", apierr.New(apierr.KindAPI, "server said no"), ExitInternal},
		{"metadata", apierr.New(apierr.KindMetadata, "bad payload"), ExitInternal},
		{"storage_missing_file", apierr.Wrap(apierr.KindStorage, os.ErrNotExist, "failed to open snapshot"), ExitNotFound},
		{"storage_other", apierr.New(apierr.KindStorage, "disk full"), ExitInternal},
		{"plain_error", errors.New("boom"), ExitInternal},
		{"plain_not_exist", os.ErrNotExist, ExitNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.want {
				t.Fatalf("classifyError = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAuthTestDebugEnablesDebugLogging(t *testing.T) {
	t.Setenv("TABLEAU_SERVER_URL", "")
	logging.Init(false)
	defer logging.Init(false)

	cmd := newAuthTestCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--debug"})
	// Fails on missing credentials; the logger is reconfigured first.
	_ = cmd.Execute()

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected --debug to enable debug logging")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command execution failed: %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version %q in output, got %q", version, out.String())
	}
}

func TestLatestSnapshotPicksNewest(t *testing.T) {
	backend := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	for _, ts := range []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	} {
		meta := &models.ServerMetadata{SiteName: "eng", Timestamp: ts}
		if _, err := backend.Save(ctx, meta, storage.Filename(meta, storage.FormatJSON), storage.FormatJSON); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	latest, err := latestSnapshot(ctx, backend)
	if err != nil {
		t.Fatalf("latestSnapshot failed: %v", err)
	}
	if latest != "eng_20240601_000000.json" {
		t.Fatalf("expected newest snapshot, got %q", latest)
	}
}

func TestLatestSnapshotEmptyBackend(t *testing.T) {
	backend := storage.NewLocal(t.TempDir())
	_, err := latestSnapshot(context.Background(), backend)
	if err == nil || !strings.Contains(err.Error(), "no snapshots found") {
		t.Fatalf("expected no-snapshots error, got %v", err)
	}
}

func TestHelpers(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("unexpected truncate result: %q", got)
	}
	if got := truncate("a very long workbook name that keeps going", 10); got != "a very ..." {
		t.Fatalf("unexpected truncate result: %q", got)
	}

	if got := formatSize(512); got != "512 B" {
		t.Fatalf("unexpected size: %q", got)
	}
	if got := formatSize(2 << 20); got != "2.0 MB" {
		t.Fatalf("unexpected size: %q", got)
	}

	if got := formatDate(time.Time{}); got != "-" {
		t.Fatalf("expected dash for zero time, got %q", got)
	}
	if got := formatDate(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)); got != "2024-06-01" {
		t.Fatalf("unexpected date: %q", got)
	}

	if got := mask(""); got != "(not set)" {
		t.Fatalf("unexpected mask for empty: %q", got)
	}
	if got := mask("ab"); got != "****" {
		t.Fatalf("unexpected mask for short secret: %q", got)
	}
	if got := mask("supersecret"); got != "supe****" {
		t.Fatalf("unexpected mask: %q", got)
	}

	if got := displaySite(""); got != "(default)" {
		t.Fatalf("unexpected site display: %q", got)
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/export"
	"github.com/ppiankov/tabspectre/internal/metadata"
	"github.com/ppiankov/tabspectre/internal/models"
	"github.com/ppiankov/tabspectre/internal/storage"
	"github.com/ppiankov/tabspectre/internal/tableau"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// NewExportCmd creates the export command group
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export metadata snapshots and reports",
	}
	cmd.AddCommand(newExportMetadataCmd())
	cmd.AddCommand(newExportReportCmd())
	return cmd
}

func newExportMetadataCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var filename, backend, output, format, configPath string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Export a stored snapshot to JSON, CSV or Excel",
		Long: `Loads a snapshot from a storage backend and writes it in the
requested format. Without --filename the most recent snapshot is used.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFile(configPath, cfg); err != nil {
				return err
			}
			switch format {
			case "json", "csv", "xlsx":
				return nil
			default:
				return apierr.New(apierr.KindConfiguration, "invalid --format value %q (expected json, csv or xlsx)", format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			b, err := resolveBackend(ctx, cfg, backend)
			if err != nil {
				return err
			}

			if filename == "" {
				filename, err = latestSnapshot(ctx, b)
				if err != nil {
					return err
				}
				cmd.Printf("Using latest snapshot: %s\n", filename)
			}

			meta, err := b.Load(ctx, filename)
			if err != nil {
				return err
			}

			base := export.BaseName(meta)
			switch format {
			case "json":
				data, err := metadata.ToJSON(meta, pretty)
				if err != nil {
					return err
				}
				path := filepath.Join(output, base+".json")
				if err := os.MkdirAll(output, 0o755); err != nil {
					return apierr.Wrap(apierr.KindStorage, err, "failed to create output directory %s", output)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return apierr.Wrap(apierr.KindStorage, err, "failed to write %s", path)
				}
				cmd.Printf("✓ Exported to %s\n", path)

			case "csv":
				written, err := export.WriteCSV(meta, output, base)
				if err != nil {
					return err
				}
				for _, path := range written {
					cmd.Printf("✓ Exported to %s\n", path)
				}
				if len(written) == 0 {
					cmd.Println("Snapshot is empty, nothing to export")
				}

			case "xlsx":
				path := filepath.Join(output, base+".xlsx")
				if err := export.WriteXLSX(meta, path); err != nil {
					return err
				}
				cmd.Printf("✓ Exported to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "Snapshot filename in the backend (default: most recent)")
	cmd.Flags().StringVar(&backend, "backend", "local", "Storage backend (local, s3)")
	cmd.Flags().StringVar(&output, "output", ".", "Output directory")
	cmd.Flags().StringVar(&format, "format", "json", "Export format (json, csv, xlsx)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent JSON output")
	cmd.Flags().StringVar(&cfg.LocalDir, "local-dir", cfg.LocalDir, "Local snapshot directory")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for snapshots")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .tabspectre.yaml config file")
	return cmd
}

func newExportReportCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var projects, owners, tags []string
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Collect live metadata and write an Excel report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cmd.Println("Connecting to Tableau Server...")
			client, err := connectClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close(ctx)
			session := client.Session()

			var info *tableau.ServerInfo
			if i, err := client.ServerInfo(ctx); err == nil {
				info = i
			}
			siteName := session.SiteContentURL
			if site, err := client.CurrentSite(ctx); err == nil {
				siteName = site.Name
			}

			cmd.Println("Collecting content...")
			workbookItems, err := client.ListWorkbooks(ctx)
			if err != nil {
				return err
			}
			datasourceItems, err := client.ListDatasources(ctx)
			if err != nil {
				return err
			}
			projectItems, err := client.ListProjects(ctx)
			if err != nil {
				return err
			}
			flowItems, err := client.ListFlows(ctx)
			if err != nil {
				return err
			}

			workbooks := make([]models.Workbook, 0, len(workbookItems))
			for _, item := range workbookItems {
				workbooks = append(workbooks, metadata.ProcessWorkbook(item, nil, nil, nil))
			}
			datasources := make([]models.Datasource, 0, len(datasourceItems))
			for _, item := range datasourceItems {
				datasources = append(datasources, metadata.ProcessDatasource(item, nil, nil))
			}
			projectList := make([]models.Project, 0, len(projectItems))
			for _, item := range projectItems {
				projectList = append(projectList, metadata.ProcessProject(item))
			}
			flows := make([]models.Flow, 0, len(flowItems))
			for _, item := range flowItems {
				flows = append(flows, metadata.ProcessFlow(item))
			}

			meta := metadata.BuildServerMetadata(clientServerURL(), session.SiteLUID, siteName, info,
				workbooks, datasources, projectList, flows)

			criteria := metadata.FilterCriteria{ProjectNames: projects, OwnerNames: owners, Tags: tags}
			if !criteria.IsZero() {
				meta = metadata.Filter(meta, criteria)
			}

			path := output
			if path == "" {
				path = export.BaseName(meta) + "_report.xlsx"
			} else if !strings.HasSuffix(path, ".xlsx") {
				path = filepath.Join(path, export.BaseName(meta)+"_report.xlsx")
			}
			if err := export.WriteXLSX(meta, path); err != nil {
				return err
			}
			cmd.Printf("✓ Report written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&projects, "projects", nil, "Only include content in these projects")
	cmd.Flags().StringSliceVar(&owners, "owners", nil, "Only include content owned by these users")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Only include content carrying one of these tags")
	cmd.Flags().StringVar(&output, "output", "", "Report path or directory (default: <site>_<timestamp>_report.xlsx)")
	return cmd
}

// latestSnapshot returns the lexically greatest snapshot path, which sorts
// newest because filenames embed the collection timestamp.
func latestSnapshot(ctx context.Context, b storage.Backend) (string, error) {
	paths, err := b.List(ctx, "")
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".json.gz") {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", apierr.New(apierr.KindStorage, "no snapshots found; run \"tabspectre metadata collect\" first")
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/graphql"
	"github.com/ppiankov/tabspectre/internal/metadata"
	"github.com/ppiankov/tabspectre/internal/models"
	"github.com/ppiankov/tabspectre/internal/storage"
	"github.com/ppiankov/tabspectre/internal/tableau"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// NewMetadataCmd creates the metadata command group
func NewMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Collect, store and inspect site metadata snapshots",
	}
	cmd.AddCommand(newMetadataCollectCmd())
	cmd.AddCommand(newMetadataListCmd())
	cmd.AddCommand(newMetadataShowCmd())
	cmd.AddCommand(newMetadataLineageCmd())
	return cmd
}

type collectOptions struct {
	includeViews       bool
	includeConnections bool
	includeLineage     bool

	projects     []string
	owners       []string
	tags         []string
	updatedSince string

	saveLocal  bool
	saveS3     bool
	formatStr  string
	configPath string

	// parsed in PreRunE
	since  time.Time
	format storage.Format
}

func newMetadataCollectCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	opts := &collectOptions{}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect a metadata snapshot from the server",
		Long: `Collects workbooks, data sources, projects and flows from the
connected site, optionally enriched with views, connections and lineage,
and stores the snapshot in the configured backends.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFile(opts.configPath, cfg); err != nil {
				return err
			}
			if opts.formatStr == "" {
				opts.formatStr = cfg.Format
			}
			format, err := storage.ParseFormat(opts.formatStr)
			if err != nil {
				return err
			}
			opts.format = format

			if opts.updatedSince != "" {
				since, err := time.Parse("2006-01-02", opts.updatedSince)
				if err != nil {
					return apierr.New(apierr.KindConfiguration, "invalid --updated-since value %q (expected YYYY-MM-DD)", opts.updatedSince)
				}
				opts.since = since
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.includeViews, "include-views", false, "Fetch views per workbook")
	cmd.Flags().BoolVar(&opts.includeConnections, "include-connections", false, "Fetch data connections per item")
	cmd.Flags().BoolVar(&opts.includeLineage, "include-lineage", false, "Fetch lineage from the Metadata API")

	cmd.Flags().StringSliceVar(&opts.projects, "projects", nil, "Only keep content in these projects")
	cmd.Flags().StringSliceVar(&opts.owners, "owners", nil, "Only keep content owned by these users")
	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "Only keep content carrying one of these tags")
	cmd.Flags().StringVar(&opts.updatedSince, "updated-since", "", "Only keep content updated on or after this date (YYYY-MM-DD)")

	cmd.Flags().BoolVar(&opts.saveLocal, "save-local", true, "Save the snapshot to the local directory")
	cmd.Flags().BoolVar(&opts.saveS3, "save-s3", false, "Save the snapshot to S3")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for snapshots")
	cmd.Flags().StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "S3 key prefix for snapshots")
	cmd.Flags().StringVar(&cfg.LocalDir, "local-dir", cfg.LocalDir, "Local snapshot directory")
	cmd.Flags().StringVar(&opts.formatStr, "format", "", "Snapshot format (json, json.gz, csv)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a .tabspectre.yaml config file")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Enrichment worker pool size")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Collect but do not save")

	return cmd
}

func runCollect(cmd *cobra.Command, cfg *config.Config, opts *collectOptions) error {
	ctx := context.Background()
	start := time.Now()

	cmd.Println("Connecting to Tableau Server...")
	client, err := connectClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	session := client.Session()

	// Server info and site name are enrichment; collection continues
	// without them.
	var info *tableau.ServerInfo
	if i, err := client.ServerInfo(ctx); err == nil {
		info = i
	} else {
		slog.Warn("failed to get server info", slog.String("error", err.Error()))
	}
	siteName := session.SiteContentURL
	if site, err := client.CurrentSite(ctx); err == nil {
		siteName = site.Name
	}

	var gql *graphql.Client
	if opts.includeLineage {
		gql = graphql.NewClient(clientServerURL(), session.Token, cfg.HTTPTimeout)
	}

	pool := tableau.NewEnrichmentPool(cfg.Concurrency)

	cmd.Println("Collecting workbooks...")
	workbookItems, err := client.ListWorkbooks(ctx)
	if err != nil {
		return err
	}
	workbooks := make([]models.Workbook, len(workbookItems))
	pool.Run(ctx, len(workbookItems), func(ctx context.Context, i int) {
		item := workbookItems[i]
		var views []tableau.ViewItem
		var conns []tableau.ConnectionItem
		var lineage models.Lineage

		if opts.includeViews {
			if v, err := client.WorkbookViews(ctx, item.ID); err == nil {
				views = v
			} else {
				slog.Warn("failed to get workbook views", slog.String("workbook", item.Name), slog.String("error", err.Error()))
			}
		}
		if opts.includeConnections {
			if c, err := client.WorkbookConnections(ctx, item.ID); err == nil {
				conns = c
			} else {
				slog.Warn("failed to get workbook connections", slog.String("workbook", item.Name), slog.String("error", err.Error()))
			}
		}
		if gql != nil {
			if l, err := gql.WorkbookLineage(ctx, item.ID); err == nil {
				lineage = l
			} else {
				slog.Warn("failed to get workbook lineage", slog.String("workbook", item.Name), slog.String("error", err.Error()))
			}
		}
		workbooks[i] = metadata.ProcessWorkbook(item, views, conns, lineage)
	})
	cmd.Printf("✓ %d workbooks\n", len(workbooks))

	cmd.Println("Collecting data sources...")
	datasourceItems, err := client.ListDatasources(ctx)
	if err != nil {
		return err
	}
	datasources := make([]models.Datasource, len(datasourceItems))
	pool.Run(ctx, len(datasourceItems), func(ctx context.Context, i int) {
		item := datasourceItems[i]
		var conns []tableau.ConnectionItem
		var lineage models.Lineage

		if opts.includeConnections {
			if c, err := client.DatasourceConnections(ctx, item.ID); err == nil {
				conns = c
			} else {
				slog.Warn("failed to get data source connections", slog.String("datasource", item.Name), slog.String("error", err.Error()))
			}
		}
		if gql != nil {
			if l, err := gql.DatasourceLineage(ctx, item.ID); err == nil {
				lineage = l
			} else {
				slog.Warn("failed to get data source lineage", slog.String("datasource", item.Name), slog.String("error", err.Error()))
			}
		}
		datasources[i] = metadata.ProcessDatasource(item, conns, lineage)
	})
	cmd.Printf("✓ %d data sources\n", len(datasources))

	cmd.Println("Collecting projects...")
	projectItems, err := client.ListProjects(ctx)
	if err != nil {
		return err
	}
	projects := make([]models.Project, 0, len(projectItems))
	for _, item := range projectItems {
		projects = append(projects, metadata.ProcessProject(item))
	}
	cmd.Printf("✓ %d projects\n", len(projects))

	cmd.Println("Collecting flows...")
	flowItems, err := client.ListFlows(ctx)
	if err != nil {
		return err
	}
	flows := make([]models.Flow, 0, len(flowItems))
	for _, item := range flowItems {
		flows = append(flows, metadata.ProcessFlow(item))
	}
	cmd.Printf("✓ %d flows\n", len(flows))

	meta := metadata.BuildServerMetadata(clientServerURL(), session.SiteLUID, siteName, info,
		workbooks, datasources, projects, flows)

	criteria := metadata.FilterCriteria{
		ProjectNames: opts.projects,
		OwnerNames:   opts.owners,
		Tags:         opts.tags,
		UpdatedSince: opts.since,
	}
	if !criteria.IsZero() {
		before := len(meta.Workbooks) + len(meta.Datasources) + len(meta.Flows)
		meta = metadata.Filter(meta, criteria)
		after := len(meta.Workbooks) + len(meta.Datasources) + len(meta.Flows)
		cmd.Printf("Filter kept %d of %d items\n", after, before)
	}

	if cfg.DryRun {
		cmd.Println("Dry run - skipping save")
		cmd.Printf("Done in %s\n", time.Since(start).Round(time.Second))
		return nil
	}

	manager, err := buildStorageManager(ctx, cfg, opts.saveLocal, opts.saveS3)
	if err != nil {
		return err
	}
	filename := storage.Filename(meta, opts.format)
	locations, err := manager.SaveAll(ctx, meta, filename, opts.format)
	if err != nil {
		return err
	}
	for backend, location := range locations {
		cmd.Printf("✓ Saved to %s: %s\n", backend, location)
	}
	cmd.Printf("Done in %s\n", time.Since(start).Round(time.Second))
	return nil
}

// clientServerURL re-reads the configured server URL so output and
// snapshots carry it even though the client keeps it private.
func clientServerURL() string {
	creds, err := tableau.CredentialsFromEnv()
	if err != nil {
		return ""
	}
	return creds.ServerURL
}

func newMetadataListCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var backend, configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored metadata snapshots",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigFile(configPath, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			b, err := resolveBackend(ctx, cfg, backend)
			if err != nil {
				return err
			}

			paths, err := b.List(ctx, "")
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				cmd.Println("No snapshots found")
				return nil
			}
			sort.Strings(paths)
			for _, p := range paths {
				cmd.Println(p)
			}
			cmd.Printf("%d snapshots\n", len(paths))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "local", "Storage backend (local, s3)")
	cmd.Flags().StringVar(&cfg.LocalDir, "local-dir", cfg.LocalDir, "Local snapshot directory")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for snapshots")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .tabspectre.yaml config file")
	return cmd
}

func newMetadataShowCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var backend, configPath string
	var summaryOnly bool

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Show a stored metadata snapshot",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigFile(configPath, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			b, err := resolveBackend(ctx, cfg, backend)
			if err != nil {
				return err
			}

			meta, err := b.Load(ctx, args[0])
			if err != nil {
				return err
			}

			if summaryOnly {
				printSummary(cmd, meta)
				return nil
			}
			data, err := metadata.ToJSON(meta, true)
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "local", "Storage backend (local, s3)")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Show summary statistics instead of the full snapshot")
	cmd.Flags().StringVar(&cfg.LocalDir, "local-dir", cfg.LocalDir, "Local snapshot directory")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for snapshots")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a .tabspectre.yaml config file")
	return cmd
}

func newMetadataLineageCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "lineage <workbook-id>",
		Short: "Show upstream and downstream lineage for a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			gql := graphql.NewClient(clientServerURL(), client.Session().Token, cfg.HTTPTimeout)
			lineage, err := gql.WorkbookLineage(ctx, args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, lineage)
		},
	}
	return cmd
}

func resolveBackend(ctx context.Context, cfg *config.Config, name string) (storage.Backend, error) {
	manager, err := buildStorageManager(ctx, cfg, name == "local", name == "s3")
	if err != nil {
		return nil, err
	}
	return manager.Backend(name)
}

func printSummary(cmd *cobra.Command, meta *models.ServerMetadata) {
	s := metadata.Summarize(meta)

	cmd.Printf("Server:      %s\n", s.ServerURL)
	cmd.Printf("Site:        %s\n", s.SiteName)
	cmd.Printf("Collected:   %s\n", s.Timestamp.UTC().Format(time.RFC3339))
	cmd.Printf("Workbooks:   %d\n", s.WorkbookCount)
	cmd.Printf("Datasources: %d\n", s.DatasourceCount)
	cmd.Printf("Projects:    %d\n", s.ProjectCount)
	cmd.Printf("Flows:       %d\n", s.FlowCount)
	cmd.Printf("Total size:  %s\n", formatSize(s.TotalSize))

	if len(s.Projects) > 0 {
		t := newTableWriter(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Project", "Workbooks", "Datasources", "Flows"})
		for _, p := range s.Projects {
			t.AppendRow(table.Row{p.Name, p.Workbooks, p.Datasources, p.Flows})
		}
		t.Render()
	}

	if len(s.RecentWorkbooks) > 0 {
		cmd.Println("\nRecently updated workbooks:")
		for _, item := range s.RecentWorkbooks {
			cmd.Printf("  %s  %s (%s)\n", formatDate(item.UpdatedAt), item.Name, item.Project)
		}
	}
	if len(s.RecentDatasource) > 0 {
		cmd.Println("\nRecently updated data sources:")
		for _, item := range s.RecentDatasource {
			cmd.Printf("  %s  %s (%s)\n", formatDate(item.UpdatedAt), item.Name, item.Project)
		}
	}
}

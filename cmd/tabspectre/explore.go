package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// NewExploreCmd creates the explore command group
func NewExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse published content on the site",
	}
	cmd.AddCommand(newExploreWorkbooksCmd())
	cmd.AddCommand(newExploreDatasourcesCmd())
	cmd.AddCommand(newExploreProjectsCmd())
	cmd.AddCommand(newExploreFlowsCmd())
	cmd.AddCommand(newExploreUsersCmd())
	cmd.AddCommand(newExploreGroupsCmd())
	cmd.AddCommand(newExploreWorkbookCmd())
	cmd.AddCommand(newExploreSearchCmd())
	return cmd
}

type exploreFilter struct {
	limit   int
	project string
	owner   string
}

func (f exploreFilter) matches(project, owner string) bool {
	if f.project != "" && !strings.EqualFold(f.project, project) {
		return false
	}
	if f.owner != "" && !strings.EqualFold(f.owner, owner) {
		return false
	}
	return true
}

func addExploreFlags(cmd *cobra.Command, f *exploreFilter) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum rows to show (0 = all)")
	cmd.Flags().StringVar(&f.project, "project", "", "Only show content in this project")
	cmd.Flags().StringVar(&f.owner, "owner", "", "Only show content owned by this user")
}

func newExploreWorkbooksCmd() *cobra.Command {
	var filter exploreFilter
	cmd := &cobra.Command{
		Use:   "workbooks",
		Short: "List workbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			workbooks, err := client.ListWorkbooks(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Project", "Owner", "Size", "Updated", "Tags"})
			shown := 0
			for _, wb := range workbooks {
				if !filter.matches(wb.Project.Name, wb.Owner.Name) {
					continue
				}
				if limitApplies(filter.limit, shown) {
					break
				}
				t.AppendRow(table.Row{
					truncate(wb.Name, 40), wb.Project.Name, wb.Owner.Name,
					formatSize(wb.Size), formatDate(wb.UpdatedAt),
					strings.Join(wb.TagLabels(), ", "),
				})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d workbooks\n", shown, len(workbooks))
			return nil
		},
	}
	addExploreFlags(cmd, &filter)
	return cmd
}

func newExploreDatasourcesCmd() *cobra.Command {
	var filter exploreFilter
	cmd := &cobra.Command{
		Use:   "datasources",
		Short: "List published data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			datasources, err := client.ListDatasources(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Project", "Owner", "Size", "Updated", "Tags"})
			shown := 0
			for _, ds := range datasources {
				if !filter.matches(ds.Project.Name, ds.Owner.Name) {
					continue
				}
				if limitApplies(filter.limit, shown) {
					break
				}
				t.AppendRow(table.Row{
					truncate(ds.Name, 40), ds.Project.Name, ds.Owner.Name,
					formatSize(ds.Size), formatDate(ds.UpdatedAt),
					strings.Join(ds.TagLabels(), ", "),
				})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d data sources\n", shown, len(datasources))
			return nil
		},
	}
	addExploreFlags(cmd, &filter)
	return cmd
}

func newExploreProjectsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			projects, err := client.ListProjects(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Description", "Permissions", "Updated"})
			shown := 0
			for _, p := range projects {
				if limitApplies(limit, shown) {
					break
				}
				t.AppendRow(table.Row{
					p.Name, truncate(p.Description, 50), p.ContentPermissions, formatDate(p.UpdatedAt),
				})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d projects\n", shown, len(projects))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to show (0 = all)")
	return cmd
}

func newExploreFlowsCmd() *cobra.Command {
	var filter exploreFilter
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List Prep flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			flows, err := client.ListFlows(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Project", "Owner", "Updated", "Tags"})
			shown := 0
			for _, f := range flows {
				if !filter.matches(f.Project.Name, f.Owner.Name) {
					continue
				}
				if limitApplies(filter.limit, shown) {
					break
				}
				t.AppendRow(table.Row{
					truncate(f.Name, 40), f.Project.Name, f.Owner.Name,
					formatDate(f.UpdatedAt), strings.Join(f.TagLabels(), ", "),
				})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d flows\n", shown, len(flows))
			return nil
		},
	}
	addExploreFlags(cmd, &filter)
	return cmd
}

func newExploreUsersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List site users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			users, err := client.ListUsers(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Full Name", "Site Role", "Last Login"})
			shown := 0
			for _, u := range users {
				if limitApplies(limit, shown) {
					break
				}
				t.AppendRow(table.Row{u.Name, u.FullName, u.SiteRole, formatDate(u.LastLogin)})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d users\n", shown, len(users))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to show (0 = all)")
	return cmd
}

func newExploreGroupsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List site groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			groups, err := client.ListGroups(ctx)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Domain", "Minimum Site Role"})
			shown := 0
			for _, g := range groups {
				if limitApplies(limit, shown) {
					break
				}
				t.AppendRow(table.Row{g.Name, g.Domain.Name, g.Import.SiteRole})
				shown++
			}
			t.Render()
			cmd.Printf("%d of %d groups\n", shown, len(groups))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to show (0 = all)")
	return cmd
}

func newExploreWorkbookCmd() *cobra.Command {
	var showViews, showConnections bool
	cmd := &cobra.Command{
		Use:   "workbook <id>",
		Short: "Show one workbook in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			wb, err := client.GetWorkbook(ctx, args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Name:        %s\n", wb.Name)
			cmd.Printf("ID:          %s\n", wb.ID)
			cmd.Printf("Project:     %s\n", wb.Project.Name)
			cmd.Printf("Owner:       %s\n", wb.Owner.Name)
			cmd.Printf("Size:        %s\n", formatSize(wb.Size))
			cmd.Printf("Created:     %s\n", formatDate(wb.CreatedAt))
			cmd.Printf("Updated:     %s\n", formatDate(wb.UpdatedAt))
			if wb.Description != "" {
				cmd.Printf("Description: %s\n", wb.Description)
			}
			if tags := wb.TagLabels(); len(tags) > 0 {
				cmd.Printf("Tags:        %s\n", strings.Join(tags, ", "))
			}

			if showViews {
				views, err := client.WorkbookViews(ctx, wb.ID)
				if err != nil {
					return err
				}
				cmd.Printf("\nViews (%d):\n", len(views))
				for _, v := range views {
					cmd.Printf("  - %s\n", v.Name)
				}
			}
			if showConnections {
				conns, err := client.WorkbookConnections(ctx, wb.ID)
				if err != nil {
					return err
				}
				cmd.Printf("\nConnections (%d):\n", len(conns))
				for _, c := range conns {
					cmd.Printf("  - %s %s (embedded password: %v)\n", c.Type, c.ServerAddress, c.EmbedPassword)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showViews, "views", false, "Include workbook views")
	cmd.Flags().BoolVar(&showConnections, "connections", false, "Include data connections")
	return cmd
}

func newExploreSearchCmd() *cobra.Command {
	var contentType string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search content by name",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch contentType {
			case "all", "workbooks", "datasources", "projects", "flows":
				return nil
			default:
				return apierr.New(apierr.KindConfiguration,
					"invalid --type value %q (expected all, workbooks, datasources, projects or flows)", contentType)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectClient(ctx, config.DefaultConfig())
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			results, err := client.Search(ctx, args[0], contentType)
			if err != nil {
				return err
			}

			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Type", "Name", "Project", "Owner"})
			shown := 0
			appendResult := func(kind, name, project, owner string) {
				if limitApplies(limit, shown) {
					return
				}
				t.AppendRow(table.Row{kind, truncate(name, 40), project, owner})
				shown++
			}
			for _, wb := range results.Workbooks {
				appendResult("workbook", wb.Name, wb.Project.Name, wb.Owner.Name)
			}
			for _, ds := range results.Datasources {
				appendResult("datasource", ds.Name, ds.Project.Name, ds.Owner.Name)
			}
			for _, p := range results.Projects {
				appendResult("project", p.Name, "", "")
			}
			for _, f := range results.Flows {
				appendResult("flow", f.Name, f.Project.Name, f.Owner.Name)
			}
			t.Render()
			cmd.Printf("%d matches\n", results.Total())
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "all", "Content type (all, workbooks, datasources, projects, flows)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to show (0 = all)")
	return cmd
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return strconv.FormatFloat(float64(bytes)/(1<<30), 'f', 1, 64) + " GB"
	case bytes >= 1<<20:
		return strconv.FormatFloat(float64(bytes)/(1<<20), 'f', 1, 64) + " MB"
	case bytes >= 1<<10:
		return strconv.FormatFloat(float64(bytes)/(1<<10), 'f', 1, 64) + " KB"
	default:
		return strconv.FormatInt(bytes, 10) + " B"
	}
}

package metadata

import (
	"sort"
	"time"

	"github.com/ppiankov/tabspectre/internal/models"
)

const recentLimit = 5

// Summary is a compact rollup of one snapshot.
type Summary struct {
	ServerURL        string         `json:"server_url"`
	SiteName         string         `json:"site_name"`
	Timestamp        time.Time      `json:"timestamp"`
	WorkbookCount    int            `json:"workbook_count"`
	DatasourceCount  int            `json:"datasource_count"`
	ProjectCount     int            `json:"project_count"`
	FlowCount        int            `json:"flow_count"`
	TotalSize        int64          `json:"total_size_bytes"`
	Projects         []ProjectStats `json:"projects,omitempty"`
	RecentWorkbooks  []RecentItem   `json:"recent_workbooks,omitempty"`
	RecentDatasource []RecentItem   `json:"recent_datasources,omitempty"`
}

// ProjectStats counts content per project.
type ProjectStats struct {
	Name        string `json:"name"`
	Workbooks   int    `json:"workbooks"`
	Datasources int    `json:"datasources"`
	Flows       int    `json:"flows"`
}

// RecentItem is one recently updated entity.
type RecentItem struct {
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	Owner     string    `json:"owner"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize computes the rollup for a snapshot. A snapshot with empty lists
// yields zero counts, never an error.
func Summarize(meta *models.ServerMetadata) Summary {
	s := Summary{
		ServerURL:       meta.ServerURL,
		SiteName:        meta.SiteName,
		Timestamp:       meta.Timestamp,
		WorkbookCount:   len(meta.Workbooks),
		DatasourceCount: len(meta.Datasources),
		ProjectCount:    len(meta.Projects),
		FlowCount:       len(meta.Flows),
	}

	for _, wb := range meta.Workbooks {
		s.TotalSize += wb.Size
	}
	for _, ds := range meta.Datasources {
		s.TotalSize += ds.Size
	}

	for _, p := range meta.Projects {
		s.Projects = append(s.Projects, ProjectStats{
			Name:        p.Name,
			Workbooks:   p.WorkbookCount,
			Datasources: p.DatasourceCount,
			Flows:       p.FlowCount,
		})
	}
	sort.Slice(s.Projects, func(i, j int) bool { return s.Projects[i].Name < s.Projects[j].Name })

	for _, wb := range meta.Workbooks {
		s.RecentWorkbooks = append(s.RecentWorkbooks, RecentItem{
			Name: wb.Name, Project: wb.ProjectName, Owner: wb.OwnerName, UpdatedAt: wb.UpdatedAt,
		})
	}
	s.RecentWorkbooks = mostRecent(s.RecentWorkbooks)

	for _, ds := range meta.Datasources {
		s.RecentDatasource = append(s.RecentDatasource, RecentItem{
			Name: ds.Name, Project: ds.ProjectName, Owner: ds.OwnerName, UpdatedAt: ds.UpdatedAt,
		})
	}
	s.RecentDatasource = mostRecent(s.RecentDatasource)

	return s
}

func mostRecent(items []RecentItem) []RecentItem {
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	if len(items) > recentLimit {
		items = items[:recentLimit]
	}
	return items
}

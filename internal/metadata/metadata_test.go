package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tabspectre/internal/models"
	"github.com/ppiankov/tabspectre/internal/tableau"
)

func sampleMetadata() *models.ServerMetadata {
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return &models.ServerMetadata{
		ServerURL: "https://tab.example.com",
		SiteName:  "Engineering",
		Timestamp: jun,
		Workbooks: []models.Workbook{
			{ID: "wb-1", Name: "Sales", ProjectName: "Analytics", OwnerName: "alice", Tags: []string{"prod"}, UpdatedAt: jun, Size: 1024},
			{ID: "wb-2", Name: "Churn", ProjectName: "Analytics", OwnerName: "bob", UpdatedAt: jan, Size: 2048},
			{ID: "wb-3", Name: "Ops", ProjectName: "Platform", OwnerName: "alice", Tags: []string{"internal"}, UpdatedAt: jun, Size: 512},
		},
		Datasources: []models.Datasource{
			{ID: "ds-1", Name: "Warehouse", ProjectName: "Analytics", OwnerName: "bob", Tags: []string{"prod"}, UpdatedAt: jun, Size: 4096},
		},
		Projects: []models.Project{
			{ID: "p1", Name: "Analytics", UpdatedAt: jan},
			{ID: "p2", Name: "Platform", UpdatedAt: jun},
		},
		Flows: []models.Flow{
			{ID: "f-1", Name: "Nightly Prep", ProjectName: "Analytics", OwnerName: "alice", UpdatedAt: jan},
		},
	}
}

func TestFilterByProject(t *testing.T) {
	meta := sampleMetadata()
	got := Filter(meta, FilterCriteria{ProjectNames: []string{"analytics"}})

	require.Len(t, got.Workbooks, 2)
	require.Len(t, got.Datasources, 1)
	require.Len(t, got.Flows, 1)
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "Analytics", got.Projects[0].Name)
}

func TestFilterConjunction(t *testing.T) {
	meta := sampleMetadata()
	got := Filter(meta, FilterCriteria{
		ProjectNames: []string{"Analytics"},
		OwnerNames:   []string{"alice"},
	})

	// Only wb-1 is in Analytics AND owned by alice.
	require.Len(t, got.Workbooks, 1)
	assert.Equal(t, "wb-1", got.Workbooks[0].ID)
	assert.Empty(t, got.Datasources)
	assert.Empty(t, got.Flows)
}

func TestFilterByTag(t *testing.T) {
	meta := sampleMetadata()
	got := Filter(meta, FilterCriteria{Tags: []string{"PROD"}})

	require.Len(t, got.Workbooks, 1)
	assert.Equal(t, "Sales", got.Workbooks[0].Name)
	require.Len(t, got.Datasources, 1)
	// Tag criteria do not apply to projects.
	assert.Len(t, got.Projects, 2)
}

func TestFilterByUpdatedSince(t *testing.T) {
	meta := sampleMetadata()
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got := Filter(meta, FilterCriteria{UpdatedSince: since})

	require.Len(t, got.Workbooks, 2)
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "Platform", got.Projects[0].Name)
	assert.Empty(t, got.Flows)
}

func TestFilterComposesSequentially(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		first    FilterCriteria
		second   FilterCriteria
		combined FilterCriteria
	}{
		{
			name:     "project_then_owner",
			first:    FilterCriteria{ProjectNames: []string{"Analytics"}},
			second:   FilterCriteria{OwnerNames: []string{"alice"}},
			combined: FilterCriteria{ProjectNames: []string{"Analytics"}, OwnerNames: []string{"alice"}},
		},
		{
			name:     "owner_then_project",
			first:    FilterCriteria{OwnerNames: []string{"alice"}},
			second:   FilterCriteria{ProjectNames: []string{"Analytics"}},
			combined: FilterCriteria{OwnerNames: []string{"alice"}, ProjectNames: []string{"Analytics"}},
		},
		{
			name:     "tag_then_updated_since",
			first:    FilterCriteria{Tags: []string{"prod"}},
			second:   FilterCriteria{UpdatedSince: since},
			combined: FilterCriteria{Tags: []string{"prod"}, UpdatedSince: since},
		},
		{
			name:     "updated_since_then_owner",
			first:    FilterCriteria{UpdatedSince: since},
			second:   FilterCriteria{OwnerNames: []string{"bob"}},
			combined: FilterCriteria{UpdatedSince: since, OwnerNames: []string{"bob"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sequential := Filter(Filter(sampleMetadata(), tc.first), tc.second)
			combined := Filter(sampleMetadata(), tc.combined)
			assert.Equal(t, combined, sequential)
		})
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	meta := sampleMetadata()
	_ = Filter(meta, FilterCriteria{ProjectNames: []string{"Platform"}})

	assert.Len(t, meta.Workbooks, 3)
	assert.Len(t, meta.Datasources, 1)
	assert.Len(t, meta.Projects, 2)
	assert.Len(t, meta.Flows, 1)
}

func TestFilterEmptyCriteriaMatchesAll(t *testing.T) {
	meta := sampleMetadata()
	got := Filter(meta, FilterCriteria{})
	assert.Equal(t, len(meta.Workbooks), len(got.Workbooks))
	assert.Equal(t, len(meta.Projects), len(got.Projects))
}

func TestProcessWorkbook(t *testing.T) {
	item := tableau.WorkbookItem{
		ID:      "wb-1",
		Name:    "Sales",
		Size:    1024,
		Project: tableau.ProjectRef{ID: "p1", Name: "Analytics"},
		Owner:   tableau.OwnerRef{ID: "u1", Name: "alice"},
	}
	views := []tableau.ViewItem{{ID: "v-1", Name: "Dashboard"}}
	conns := []tableau.ConnectionItem{{ID: "c-1", Type: "postgres", EmbedPassword: true}}
	lineage := models.Lineage{"workbooks": []any{}}

	wb := ProcessWorkbook(item, views, conns, lineage)
	assert.Equal(t, "Analytics", wb.ProjectName)
	assert.Equal(t, "alice", wb.OwnerName)
	require.Len(t, wb.Views, 1)
	require.Len(t, wb.Connections, 1)
	assert.True(t, wb.Connections[0].EmbedPassword)
	assert.NotNil(t, wb.Lineage)
}

func TestProcessWorkbookWithoutEnrichment(t *testing.T) {
	wb := ProcessWorkbook(tableau.WorkbookItem{ID: "wb-1", Name: "Sales"}, nil, nil, nil)
	assert.Empty(t, wb.Views)
	assert.Empty(t, wb.Connections)
	assert.Nil(t, wb.Lineage)
}

func TestBuildServerMetadataComputesProjectCounts(t *testing.T) {
	info := &tableau.ServerInfo{RESTAPIVersion: "3.24"}
	info.ProductVersion.Value = "2024.2.3"

	meta := BuildServerMetadata("https://tab.example.com", "site-1", "Engineering", info,
		[]models.Workbook{{ID: "wb-1", ProjectID: "p1"}, {ID: "wb-2", ProjectID: "p1"}},
		[]models.Datasource{{ID: "ds-1", ProjectID: "p2"}},
		[]models.Project{{ID: "p1", Name: "Analytics"}, {ID: "p2", Name: "Platform"}},
		[]models.Flow{{ID: "f-1", ProjectID: "p1"}},
	)

	assert.Equal(t, "2024.2.3", meta.Version)
	assert.Equal(t, "3.24", meta.RESTAPIVersion)
	assert.False(t, meta.Timestamp.IsZero())
	assert.Equal(t, 2, meta.Projects[0].WorkbookCount)
	assert.Equal(t, 1, meta.Projects[0].FlowCount)
	assert.Equal(t, 1, meta.Projects[1].DatasourceCount)
	assert.Equal(t, 0, meta.Projects[1].WorkbookCount)
}

func TestSummarize(t *testing.T) {
	meta := sampleMetadata()
	meta.Projects[0].WorkbookCount = 2
	meta.Projects[0].DatasourceCount = 1

	s := Summarize(meta)
	assert.Equal(t, 3, s.WorkbookCount)
	assert.Equal(t, 1, s.DatasourceCount)
	assert.Equal(t, 2, s.ProjectCount)
	assert.Equal(t, 1, s.FlowCount)
	assert.Equal(t, int64(1024+2048+512+4096), s.TotalSize)
	require.Len(t, s.Projects, 2)
	assert.Equal(t, "Analytics", s.Projects[0].Name)
	require.NotEmpty(t, s.RecentWorkbooks)
	// Most recent first.
	assert.Equal(t, s.RecentWorkbooks[0].UpdatedAt, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
}

func TestSummarizeEmptySnapshot(t *testing.T) {
	s := Summarize(&models.ServerMetadata{ServerURL: "https://tab.example.com"})
	assert.Zero(t, s.WorkbookCount)
	assert.Zero(t, s.TotalSize)
	assert.Empty(t, s.RecentWorkbooks)
}

func TestJSONRoundTrip(t *testing.T) {
	meta := sampleMetadata()
	data, err := ToJSON(meta, true)
	require.NoError(t, err)

	got, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, meta.ServerURL, got.ServerURL)
	assert.Equal(t, meta.Workbooks, got.Workbooks)
	assert.Equal(t, meta.Datasources, got.Datasources)
	assert.Equal(t, meta.Projects, got.Projects)
	assert.Equal(t, meta.Flows, got.Flows)
}

func TestFromJSONInvalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	require.Error(t, err)
}

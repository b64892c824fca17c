// Package metadata turns raw REST items into the normalized schema and
// derives filtered views and summaries from a collected snapshot.
package metadata

import (
	"encoding/json"
	"time"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/models"
	"github.com/ppiankov/tabspectre/internal/tableau"
)

// ProcessWorkbook normalizes one workbook. views, connections and lineage
// come from the enrichment endpoints and may be nil when enrichment failed
// or was skipped.
func ProcessWorkbook(item tableau.WorkbookItem, views []tableau.ViewItem, connections []tableau.ConnectionItem, lineage models.Lineage) models.Workbook {
	return models.Workbook{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		ProjectID:   item.Project.ID,
		ProjectName: item.Project.Name,
		OwnerID:     item.Owner.ID,
		OwnerName:   item.Owner.Name,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		Size:        item.Size,
		WebpageURL:  item.WebpageURL,
		ContentURL:  item.ContentURL,
		ShowTabs:    item.ShowTabs,
		Views:       processViews(views),
		Connections: processConnections(connections),
		Tags:        item.TagLabels(),
		Lineage:     lineage,
	}
}

// ProcessDatasource normalizes one published data source.
func ProcessDatasource(item tableau.DatasourceItem, connections []tableau.ConnectionItem, lineage models.Lineage) models.Datasource {
	return models.Datasource{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		ProjectID:   item.Project.ID,
		ProjectName: item.Project.Name,
		OwnerID:     item.Owner.ID,
		OwnerName:   item.Owner.Name,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		Size:        item.Size,
		WebpageURL:  item.WebpageURL,
		ContentURL:  item.ContentURL,
		Connections: processConnections(connections),
		Tags:        item.TagLabels(),
		Lineage:     lineage,
	}
}

// ProcessProject normalizes one project. Content counts are filled in by
// BuildServerMetadata once all child lists are known.
func ProcessProject(item tableau.ProjectItem) models.Project {
	return models.Project{
		ID:                 item.ID,
		Name:               item.Name,
		Description:        item.Description,
		ParentID:           item.ParentProjectID,
		ContentPermissions: item.ContentPermissions,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

// ProcessFlow normalizes one Prep flow.
func ProcessFlow(item tableau.FlowItem) models.Flow {
	return models.Flow{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		ProjectID:   item.Project.ID,
		ProjectName: item.Project.Name,
		OwnerID:     item.Owner.ID,
		OwnerName:   item.Owner.Name,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		WebpageURL:  item.WebpageURL,
		Tags:        item.TagLabels(),
	}
}

// ProcessUser normalizes one site user.
func ProcessUser(item tableau.UserItem) models.User {
	return models.User{
		ID:        item.ID,
		Name:      item.Name,
		FullName:  item.FullName,
		SiteRole:  item.SiteRole,
		LastLogin: item.LastLogin,
	}
}

// ProcessGroup normalizes one site group.
func ProcessGroup(item tableau.GroupItem) models.Group {
	return models.Group{
		ID:          item.ID,
		Name:        item.Name,
		DomainName:  item.Domain.Name,
		MinimumRole: item.Import.SiteRole,
	}
}

func processViews(items []tableau.ViewItem) []models.View {
	if len(items) == 0 {
		return nil
	}
	views := make([]models.View, 0, len(items))
	for _, v := range items {
		views = append(views, models.View{
			ID:         v.ID,
			Name:       v.Name,
			ContentURL: v.ContentURL,
			WebpageURL: v.WebpageURL,
			CreatedAt:  v.CreatedAt,
			UpdatedAt:  v.UpdatedAt,
		})
	}
	return views
}

func processConnections(items []tableau.ConnectionItem) []models.Connection {
	if len(items) == 0 {
		return nil
	}
	conns := make([]models.Connection, 0, len(items))
	for _, c := range items {
		conns = append(conns, models.Connection{
			ID:             c.ID,
			DatasourceID:   c.Datasource.ID,
			DatasourceName: c.Datasource.Name,
			Type:           c.Type,
			ServerAddress:  c.ServerAddress,
			ServerPort:     c.ServerPort,
			Username:       c.UserName,
			EmbedPassword:  c.EmbedPassword,
		})
	}
	return conns
}

// BuildServerMetadata assembles the root aggregate for one collection run.
// Project content counts are computed here from the child lists so that a
// snapshot is self-consistent regardless of what the server reports.
func BuildServerMetadata(serverURL, siteID, siteName string, info *tableau.ServerInfo, workbooks []models.Workbook, datasources []models.Datasource, projects []models.Project, flows []models.Flow) *models.ServerMetadata {
	meta := &models.ServerMetadata{
		ServerURL:   serverURL,
		SiteID:      siteID,
		SiteName:    siteName,
		Timestamp:   time.Now().UTC(),
		Workbooks:   workbooks,
		Datasources: datasources,
		Projects:    projects,
		Flows:       flows,
	}
	if info != nil {
		meta.Version = info.ProductVersion.Value
		meta.RESTAPIVersion = info.RESTAPIVersion
	}

	wbCount := make(map[string]int)
	for _, wb := range workbooks {
		wbCount[wb.ProjectID]++
	}
	dsCount := make(map[string]int)
	for _, ds := range datasources {
		dsCount[ds.ProjectID]++
	}
	flowCount := make(map[string]int)
	for _, f := range flows {
		flowCount[f.ProjectID]++
	}
	for i := range meta.Projects {
		p := &meta.Projects[i]
		p.WorkbookCount = wbCount[p.ID]
		p.DatasourceCount = dsCount[p.ID]
		p.FlowCount = flowCount[p.ID]
	}
	return meta
}

// ToJSON serializes a snapshot. pretty switches to indented output.
func ToJSON(meta *models.ServerMetadata, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(meta, "", "  ")
	} else {
		data, err = json.Marshal(meta)
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.KindMetadata, err, "failed to serialize metadata")
	}
	return data, nil
}

// FromJSON parses a snapshot previously produced by ToJSON.
func FromJSON(data []byte) (*models.ServerMetadata, error) {
	var meta models.ServerMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apierr.Wrap(apierr.KindMetadata, err, "failed to parse metadata")
	}
	return &meta, nil
}

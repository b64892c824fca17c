// Package export writes collected metadata to CSV and XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/models"
)

var (
	workbookHeader   = []string{"ID", "Name", "Description", "Project", "Owner", "Created", "Updated", "Size", "URL", "Show Tabs", "Tags"}
	datasourceHeader = []string{"ID", "Name", "Description", "Project", "Owner", "Created", "Updated", "Size", "URL", "Tags"}
	projectHeader    = []string{"ID", "Name", "Description", "Parent ID", "Permissions", "Created", "Updated"}
	flowHeader       = []string{"ID", "Name", "Description", "Project", "Owner", "Created", "Updated", "URL", "Tags"}
)

// WriteCSV writes one CSV file per non-empty entity list into dir, using
// baseName as the filename stem. It returns the paths written.
func WriteCSV(meta *models.ServerMetadata, dir, baseName string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierr.Wrap(apierr.KindStorage, err, "failed to create export directory %s", dir)
	}

	var written []string
	if len(meta.Workbooks) > 0 {
		path := filepath.Join(dir, baseName+"_workbooks.csv")
		if err := writeCSVFile(path, workbookHeader, workbookRows(meta.Workbooks)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(meta.Datasources) > 0 {
		path := filepath.Join(dir, baseName+"_datasources.csv")
		if err := writeCSVFile(path, datasourceHeader, datasourceRows(meta.Datasources)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(meta.Projects) > 0 {
		path := filepath.Join(dir, baseName+"_projects.csv")
		if err := writeCSVFile(path, projectHeader, projectRows(meta.Projects)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(meta.Flows) > 0 {
		path := filepath.Join(dir, baseName+"_flows.csv")
		if err := writeCSVFile(path, flowHeader, flowRows(meta.Flows)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to write %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to write %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to flush %s", path)
	}
	return nil
}

func workbookRows(workbooks []models.Workbook) [][]string {
	rows := make([][]string, 0, len(workbooks))
	for _, wb := range workbooks {
		rows = append(rows, []string{
			wb.ID, wb.Name, wb.Description, wb.ProjectName, wb.OwnerName,
			formatTime(wb.CreatedAt), formatTime(wb.UpdatedAt),
			strconv.FormatInt(wb.Size, 10), wb.WebpageURL,
			strconv.FormatBool(wb.ShowTabs), strings.Join(wb.Tags, ", "),
		})
	}
	return rows
}

func datasourceRows(datasources []models.Datasource) [][]string {
	rows := make([][]string, 0, len(datasources))
	for _, ds := range datasources {
		rows = append(rows, []string{
			ds.ID, ds.Name, ds.Description, ds.ProjectName, ds.OwnerName,
			formatTime(ds.CreatedAt), formatTime(ds.UpdatedAt),
			strconv.FormatInt(ds.Size, 10), ds.WebpageURL,
			strings.Join(ds.Tags, ", "),
		})
	}
	return rows
}

func projectRows(projects []models.Project) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			p.ID, p.Name, p.Description, p.ParentID, p.ContentPermissions,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		})
	}
	return rows
}

func flowRows(flows []models.Flow) [][]string {
	rows := make([][]string, 0, len(flows))
	for _, f := range flows {
		rows = append(rows, []string{
			f.ID, f.Name, f.Description, f.ProjectName, f.OwnerName,
			formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
			f.WebpageURL, strings.Join(f.Tags, ", "),
		})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BaseName derives a filename stem from a snapshot: site name (or "default")
// plus the collection timestamp.
func BaseName(meta *models.ServerMetadata) string {
	site := meta.SiteName
	if site == "" {
		site = "default"
	}
	site = sanitize(site)
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("%s_%s", site, ts.UTC().Format("20060102_150405"))
}

func sanitize(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_")
	return replacer.Replace(strings.ToLower(name))
}

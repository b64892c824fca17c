package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/internal/metadata"
	"github.com/ppiankov/tabspectre/internal/models"
)

// WriteXLSX writes a workbook report to path: a Summary sheet followed by
// one sheet per non-empty entity list.
func WriteXLSX(meta *models.ServerMetadata, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to create export directory %s", dir)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to create workbook style")
	}

	if err := writeSummarySheet(f, meta, headerStyle); err != nil {
		return err
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"Workbooks", workbookHeader, workbookRows(meta.Workbooks)},
		{"Data Sources", datasourceHeader, datasourceRows(meta.Datasources)},
		{"Projects", projectHeader, projectRows(meta.Projects)},
		{"Flows", flowHeader, flowRows(meta.Flows)},
	}
	for _, sheet := range sheets {
		if len(sheet.rows) == 0 {
			continue
		}
		if err := writeSheet(f, sheet.name, sheet.header, sheet.rows, headerStyle); err != nil {
			return err
		}
	}

	// Drop the default sheet created by excelize.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to finalize workbook")
	}
	if idx, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to write %s", path)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, meta *models.ServerMetadata, headerStyle int) error {
	const name = "Summary"
	if _, err := f.NewSheet(name); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to create sheet %s", name)
	}

	s := metadata.Summarize(meta)
	rows := [][]any{
		{"Server URL", s.ServerURL},
		{"Site", s.SiteName},
		{"Server Version", meta.Version},
		{"Collected At", formatTime(s.Timestamp)},
		{"Generated At", time.Now().UTC().Format(time.RFC3339)},
		{},
		{"Workbooks", s.WorkbookCount},
		{"Data Sources", s.DatasourceCount},
		{"Projects", s.ProjectCount},
		{"Flows", s.FlowCount},
		{"Total Size (bytes)", s.TotalSize},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
		}
	}
	if err := f.SetCellStyle(name, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to style sheet %s", name)
	}
	return f.SetColWidth(name, "A", "B", 28)
}

func writeSheet(f *excelize.File, name string, header []string, rows [][]string, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to create sheet %s", name)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerRow); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
	}
	if err := f.SetCellStyle(name, "A1", lastCol, headerStyle); err != nil {
		return apierr.Wrap(apierr.KindStorage, err, "failed to style sheet %s", name)
	}

	for i, row := range rows {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return apierr.Wrap(apierr.KindStorage, err, "failed to write sheet %s", name)
		}
	}
	return nil
}

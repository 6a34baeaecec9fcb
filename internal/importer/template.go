package importer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/xuri/excelize/v2"
)

// ColumnInfo describes one template column.
type ColumnInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// TemplateInfo describes the import format.
type TemplateInfo struct {
	Example          map[string]string `json:"example"`
	Columns          []ColumnInfo      `json:"columns"`
	SupportedFormats []string          `json:"supported_formats"`
	ValidStatuses    []model.Status    `json:"valid_statuses"`
	MaxRows          int               `json:"max_rows"`
}

var templateExample = []string{"Google", "Software Engineer Co-op", string(model.StatusApplied), "2024-01-15", "Applied through LinkedIn"}

// Template returns the template description for a batch limit of maxRows.
func Template(maxRows int) TemplateInfo {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	example := make(map[string]string, len(record.Columns))
	for i, name := range record.Columns {
		example[name] = templateExample[i]
	}

	return TemplateInfo{
		Columns: []ColumnInfo{
			{Name: record.FieldCompany, Description: "Company name", Required: true},
			{Name: record.FieldPosition, Description: "Position title", Required: true},
			{Name: record.FieldStatus, Description: "Application status: " + model.StatusNames(), Required: true},
			{Name: record.FieldAppliedDate, Description: "Date applied (YYYY-MM-DD, MM/DD/YYYY or MM/DD)"},
			{Name: record.FieldNotes, Description: "Additional notes"},
		},
		Example:          example,
		SupportedFormats: []string{"CSV", "Excel", "JSON"},
		ValidStatuses:    model.Statuses,
		MaxRows:          maxRows,
	}
}

// TemplateInfo describes the format accepted by r.
func (r *Reconciler) TemplateInfo() TemplateInfo {
	return Template(r.maxRows)
}

// WriteTemplate writes a CSV template with the header and one example row.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record.Columns); err != nil {
		return fmt.Errorf("failed to write template header: %w", err)
	}
	if err := cw.Write(templateExample); err != nil {
		return fmt.Errorf("failed to write template row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteTemplateXLSX writes the same template as a workbook.
func WriteTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for rowIdx, values := range [][]string{record.Columns, templateExample} {
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("failed to address template cell: %w", err)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write template cell %s: %w", cell, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write template workbook: %w", err)
	}
	return nil
}

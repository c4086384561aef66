// Package export folds stored extraction results into one export-ready
// dataset and renders it as a styled two-sheet XLSX workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/billscan/billscan/internal/confidence"
	"github.com/billscan/billscan/internal/entity"
)

const (
	dataSheet       = "Extracted Data"
	confidenceSheet = "Confidence Scores"

	dataTabColor = "6C63FF"
	confTabColor = "00C9A7"
	altRowColor  = "F0EEFF"
	borderColor  = "D0D0D0"

	emptyCell = "—"
	colWidth  = 22.0
)

// Column is one field across the whole dataset.
type Column struct {
	Key   string
	Label string
}

// Row is one document with its extraction results keyed by field.
type Row struct {
	Filename string
	Fields   map[string]entity.ExtractionField
}

// Dataset is the export-ready fold of a job: the union of field columns in
// first-seen order, one row per document.
type Dataset struct {
	Columns []Column
	Rows    []Row
}

// FieldCount is the number of stored extraction rows in the dataset.
func (d Dataset) FieldCount() int {
	n := 0
	for _, row := range d.Rows {
		n += len(row.Fields)
	}
	return n
}

// BuildDataset folds documents (with preloaded Fields) into a Dataset.
// Documents missing a column simply render empty cells.
func BuildDataset(docs []entity.Document) Dataset {
	var ds Dataset
	seen := map[string]struct{}{}
	for i := range docs {
		row := Row{Filename: docs[i].OriginalName, Fields: map[string]entity.ExtractionField{}}
		for _, f := range docs[i].Fields {
			if _, ok := seen[f.FieldKey]; !ok {
				seen[f.FieldKey] = struct{}{}
				ds.Columns = append(ds.Columns, Column{Key: f.FieldKey, Label: f.FieldLabel})
			}
			row.Fields[f.FieldKey] = f
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// Workbook renders the dataset: a values sheet and a confidence sheet, both
// headed by Document plus one column per field. Confidence is rounded to
// integer percent here, at the presentation boundary.
func Workbook(ds Dataset) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(confidenceSheet); err != nil {
		return nil, err
	}
	dataTab, confTab := dataTabColor, confTabColor
	_ = f.SetSheetProps(dataSheet, &excelize.SheetPropsOptions{TabColorRGB: &dataTab})
	_ = f.SetSheetProps(confidenceSheet, &excelize.SheetPropsOptions{TabColorRGB: &confTab})

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	headers := make([]string, 0, len(ds.Columns)+1)
	headers = append(headers, "Document")
	for _, c := range ds.Columns {
		headers = append(headers, c.Label)
	}

	if err := writeHeader(f, dataSheet, headers, st.dataHeader); err != nil {
		return nil, err
	}
	if err := writeHeader(f, confidenceSheet, headers, st.confHeader); err != nil {
		return nil, err
	}

	for i, row := range ds.Rows {
		rowIdx := i + 2
		alt := rowIdx%2 == 0

		if err := setCell(f, dataSheet, 1, rowIdx, row.Filename, st.body(alt)); err != nil {
			return nil, err
		}
		if err := setCell(f, confidenceSheet, 1, rowIdx, row.Filename, st.centered); err != nil {
			return nil, err
		}
		for j, col := range ds.Columns {
			field, found := row.Fields[col.Key]

			value := emptyCell
			if found && field.Value != nil && *field.Value != "" {
				value = *field.Value
			}
			if err := setCell(f, dataSheet, j+2, rowIdx, value, st.body(alt)); err != nil {
				return nil, err
			}

			conf := emptyCell
			if found && field.Confidence > 0 {
				conf = fmt.Sprintf("%d%%", confidence.RoundPercent(field.Confidence))
			}
			if err := setCell(f, confidenceSheet, j+2, rowIdx, conf, st.centered); err != nil {
				return nil, err
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	_ = f.SetColWidth(dataSheet, "A", last, colWidth)
	_ = f.SetColWidth(confidenceSheet, "A", last, colWidth)

	return f, nil
}

type styles struct {
	dataHeader int
	confHeader int
	cell       int
	cellAlt    int
	centered   int
}

func (s styles) body(alt bool) int {
	if alt {
		return s.cellAlt
	}
	return s.cell
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}
	headerFont := &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11, Family: "Calibri"}
	headerAlign := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	var st styles
	var err error
	st.dataHeader, err = f.NewStyle(&excelize.Style{
		Font:      headerFont,
		Fill:      excelize.Fill{Type: "pattern", Color: []string{dataTabColor}, Pattern: 1},
		Alignment: headerAlign,
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.confHeader, err = f.NewStyle(&excelize.Style{
		Font:      headerFont,
		Fill:      excelize.Fill{Type: "pattern", Color: []string{confTabColor}, Pattern: 1},
		Alignment: headerAlign,
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.cell, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.cellAlt, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{altRowColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		Border:    border,
	})
	if err != nil {
		return st, err
	}
	st.centered, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	return st, err
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		if err := setCell(f, sheet, i+1, 1, h, style); err != nil {
			return err
		}
	}
	return f.SetRowHeight(sheet, 1, 30)
}

func setCell(f *excelize.File, sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

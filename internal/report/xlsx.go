package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of WriteXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	itemsSheet   = "Items"
	headerRow    = 4
	firstDataRow = headerRow + 1
)

var xlsxHeaders = []struct {
	label string
	width float64
}{
	{"#", 6},
	{"SKU", 16},
	{"Product", 32},
	{"System", 10},
	{"Counted", 10},
	{"Variance", 10},
	{"Status", 12},
	{"Counted by", 16},
	{"Below minimum", 14},
	{"Notes", 40},
}

// WriteXLSX writes the report as a single-sheet workbook.
func WriteXLSX(w io.Writer, r VarianceReport) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// FileName returns a download name for the report.
func FileName(r VarianceReport) string {
	return fmt.Sprintf("count-%s-%s.xlsx", r.Session.ID, r.GeneratedAt.Format("20060102"))
}

func buildWorkbook(r VarianceReport) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(itemsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border("000000"),
	})
	if err != nil {
		return nil, err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{Border: border("CCCCCC")})
	if err != nil {
		return nil, err
	}
	varianceStyle, err := f.NewStyle(&excelize.Style{
		Border: border("CCCCCC"),
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(itemsSheet, "A1", r.Title()); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(itemsSheet, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}
	if err := f.SetRowHeight(itemsSheet, 1, 30); err != nil {
		return nil, err
	}
	subtitle := fmt.Sprintf("%s | %s | generated %s", r.Location.Name, r.Session.Status, r.GeneratedAt.Format(time.RFC3339))
	if err := f.SetCellValue(itemsSheet, "A2", subtitle); err != nil {
		return nil, err
	}

	for idx, header := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(idx+1, headerRow)
		col, _ := excelize.ColumnNumberToName(idx + 1)
		if err := f.SetCellValue(itemsSheet, cell, header.label); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(itemsSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(itemsSheet, col, col, header.width); err != nil {
			return nil, err
		}
	}

	for rowIdx, line := range r.Lines {
		row := firstDataRow + rowIdx
		values := []any{
			line.Position + 1,
			line.SKU,
			line.Name,
			line.System,
			optionalInt(line.Counted),
			optionalInt(line.Variance),
			string(line.Status),
			line.CountedBy,
			yesNo(line.BelowMinimum),
			line.Notes,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetSheetRow(itemsSheet, start, &values); err != nil {
			return nil, err
		}
		style := dataStyle
		if line.HasVariance() {
			style = varianceStyle
		}
		if err := f.SetCellStyle(itemsSheet, start, end, style); err != nil {
			return nil, err
		}
	}

	summaryRow := firstDataRow + len(r.Lines) + 1
	p := r.Progress
	summary := []struct {
		key   string
		value any
	}{
		{"Items", p.TotalItems},
		{"Pending", p.Pending},
		{"Counted", p.Counted},
		{"Verified", p.Verified},
		{"Done %", p.Percent},
		{"With variance", p.WithVariance},
		{"Net variance", p.NetVariance},
		{"Absolute variance", p.AbsoluteVariance},
	}
	labelCell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	if err := f.SetCellValue(itemsSheet, labelCell, "Summary"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(itemsSheet, labelCell, labelCell, headerStyle); err != nil {
		return nil, err
	}
	for idx, entry := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(2, summaryRow+1+idx)
		valueCell, _ := excelize.CoordinatesToCellName(3, summaryRow+1+idx)
		if err := f.SetCellValue(itemsSheet, keyCell, entry.key); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(itemsSheet, valueCell, entry.value); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func border(color string) []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: color, Style: 1},
		{Type: "right", Color: color, Style: 1},
		{Type: "top", Color: color, Style: 1},
		{Type: "bottom", Color: color, Style: 1},
	}
}

func optionalInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

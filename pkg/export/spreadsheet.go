package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
)

// Display formats applied to numeric columns. Stored cell values are never altered.
const (
	RatioNumFmt  = "#0.0%"
	AmountNumFmt = "#,##0"

	DefaultSheetName = "Results"
	DefaultFileName  = "query_results.xlsx"
	ContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type spreadsheetOptions struct {
	sheetName string
}

// SpreadsheetOption configures Spreadsheet.
type SpreadsheetOption func(*spreadsheetOptions)

// WithSheetName overrides the default sheet name.
func WithSheetName(name string) SpreadsheetOption {
	return func(o *spreadsheetOptions) {
		if name != "" {
			o.sheetName = name
		}
	}
}

// Spreadsheet renders the result as a single-sheet xlsx workbook. Values are written verbatim (the
// ratio column holds raw ratios, not percentages) and number formats are applied per cell afterwards:
// the ratio column gets RatioNumFmt and every other numeric column gets AmountNumFmt.
func Spreadsheet(a dataset.Augmented, opts ...SpreadsheetOption) ([]byte, error) {
	o := spreadsheetOptions{sheetName: DefaultSheetName}
	for _, opt := range opts {
		opt(&o)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid result: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := o.sheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(a.Columns))
	for i, c := range a.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range a.Rows {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = cellValue(a.Kinds[j], v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(a.Rows) > 0 {
		ratioFmt, amountFmt := RatioNumFmt, AmountNumFmt
		ratioStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &ratioFmt})
		if err != nil {
			return nil, fmt.Errorf("failed to create ratio style: %w", err)
		}
		amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
		if err != nil {
			return nil, fmt.Errorf("failed to create amount style: %w", err)
		}
		for _, col := range a.NumericColumns() {
			style := amountStyle
			if col == a.Ratio {
				style = ratioStyle
			}
			first, _ := excelize.CoordinatesToCellName(col+1, 2)
			last, _ := excelize.CoordinatesToCellName(col+1, len(a.Rows)+1)
			if err := f.SetCellStyle(sheet, first, last, style); err != nil {
				return nil, fmt.Errorf("failed to format column %q: %w", a.Columns[col], err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue converts driver values to types excelize stores natively. Numeric columns are stored
// as float64 so decimal driver types keep their numeric cell type.
func cellValue(kind dataset.Kind, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if kind == dataset.KindNumeric {
		if f, ok := dataset.ToFloat(v); ok {
			return f
		}
	}
	switch v.(type) {
	case string, bool, time.Time,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	}
	return FormatValue(v)
}

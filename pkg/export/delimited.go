// Package export renders augmented query results as delimited text for summarisation and as a
// formatted spreadsheet for download.
package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
)

// DelimitedText renders the result as CSV with a header row. The ratio column is written as a
// percentage with one decimal place; everything else uses plain scalar formatting.
func DelimitedText(a dataset.Augmented) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := writeRecord(&sb, w, a.Columns); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(a.Columns))
	for i, row := range a.Rows {
		if len(row) != len(a.Columns) {
			return "", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(a.Columns))
		}
		for j, v := range row {
			if j == a.Ratio {
				record[j] = FormatRatio(v)
			} else {
				record[j] = FormatValue(v)
			}
		}
		if err := writeRecord(&sb, w, record); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return sb.String(), nil
}

// writeRecord writes record through w. A record holding one empty field is written as "" because
// encoding/csv would emit a blank line, which readers skip.
func writeRecord(sb *strings.Builder, w *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return w.Write(record)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	sb.WriteString("\"\"\n")
	return nil
}

// ParseDelimited reads text produced by DelimitedText back into a header and string rows.
func ParseDelimited(text string) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv has no header row")
	}
	return records[0], records[1:], nil
}

// FormatRatio renders a ratio as a percentage string, e.g. 0.234 -> "23.4%".
func FormatRatio(v any) string {
	f, ok := dataset.ToFloat(v)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatValue is the default scalar-to-text conversion used for non-ratio cells.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.DateTime)
	default:
		return fmt.Sprint(val)
	}
}

package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the built-in budget catalog. Its hierarchies carry no value rows until
// LoadHierarchiesXLSX is called.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads and validates a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// LoadHierarchiesXLSX fills hierarchy rows from the first sheet of a workbook whose header row
// names catalog columns. Hierarchies whose columns are not all present in the sheet are left as is.
func (c *Catalog) LoadHierarchiesXLSX(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open hierarchy workbook: %w", err)
	}
	defer f.Close()
	return c.ReadHierarchiesXLSX(f)
}

// ReadHierarchiesXLSX is LoadHierarchiesXLSX over an open reader.
func (c *Catalog) ReadHierarchiesXLSX(r io.Reader) error {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("failed to read hierarchy workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("hierarchy workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[normalizeHeader(name)] = i
	}

	for hi := range c.Hierarchies {
		h := &c.Hierarchies[hi]
		idx := make([]int, len(h.Columns))
		complete := true
		for i, col := range h.Columns {
			pos, ok := header[normalizeHeader(col)]
			if !ok {
				complete = false
				break
			}
			idx[i] = pos
		}
		if !complete {
			continue
		}

		var loaded [][]string
		for _, row := range rows[1:] {
			values := make([]string, len(idx))
			empty := true
			for i, pos := range idx {
				if pos < len(row) {
					values[i] = strings.TrimSpace(row[pos])
				}
				if values[i] != "" {
					empty = false
				}
			}
			if empty {
				continue
			}
			loaded = append(loaded, values)
		}
		h.Rows = loaded
	}

	return c.Validate()
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

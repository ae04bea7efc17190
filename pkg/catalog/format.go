package catalog

import (
	"strconv"
	"strings"
)

// FormatSchema renders the logical tables and columns for a prompt.
func (c *Catalog) FormatSchema() string {
	var sb strings.Builder
	for i, t := range c.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Table: " + t.Name + "\n")
		sb.WriteString("Columns:\n")
		for _, col := range t.Columns {
			if col.Type != "" {
				sb.WriteString("  " + col.Name + " (" + col.Type + ")\n")
			} else {
				sb.WriteString("  " + col.Name + "\n")
			}
		}
	}
	return sb.String()
}

// FormatHierarchies renders every hierarchy as a row-aligned table. Rows are written exactly as
// loaded, so a parent with several children appears once per child.
func (c *Catalog) FormatHierarchies() string {
	var sb strings.Builder
	for _, h := range c.Hierarchies {
		if len(h.Rows) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(h.Columns, " → ") + "\n")
		sb.WriteString("Valid values (each row shows which values belong together):\n")
		head := strings.Join(h.Columns, " | ")
		sb.WriteString("  " + head + "\n")
		sb.WriteString("  " + strings.Repeat("-", len(head)+2) + "\n")
		for _, row := range h.Rows {
			sb.WriteString("  " + strings.Join(row, " | ") + "\n")
		}
	}
	return sb.String()
}

// FormatRelations describes each hierarchy in prose, independent of whether value rows are loaded.
func (c *Catalog) FormatRelations() string {
	var sb strings.Builder
	for i, h := range c.Hierarchies {
		sb.WriteString(strconv.Itoa(i+1) + ". " + strings.Join(h.Columns, " → ") + ": ")
		for level := 1; level < len(h.Columns); level++ {
			if level > 1 {
				sb.WriteString(" ")
			}
			sb.WriteString("Each " + h.Columns[level] + " belongs to exactly one " + h.Columns[level-1] + ".")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

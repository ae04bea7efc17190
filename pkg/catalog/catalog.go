// Package catalog describes the logical schema exposed to query translation: tables and columns
// with their physical identifiers, and the parent-child value hierarchies used to disambiguate
// which column a user's term refers to.
//
// A Catalog is built once at startup and treated as read-only afterwards.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Column types used in prompt text and for identifier checks.
const (
	TypeText    = "text"
	TypeNumeric = "numeric"
	TypeDate    = "date"
)

// Column maps a logical column name to its physical identifier.
type Column struct {
	Name     string `yaml:"name"`
	Physical string `yaml:"physical"`
	Type     string `yaml:"type"`
}

// Table maps a logical table name to its physical identifier.
type Table struct {
	Name     string   `yaml:"name"`
	Physical string   `yaml:"physical"`
	Columns  []Column `yaml:"columns"`
}

// Hierarchy is an ordered parent-to-child list of columns plus the value rows that encode the
// relation. Rows are kept as loaded; repeated parents are how multiple children are expressed.
type Hierarchy struct {
	Name    string     `yaml:"name"`
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows,omitempty"`
}

type Catalog struct {
	// Dialect is the SQL dialect name shown to the model (e.g. "T-SQL (SQL Server)").
	Dialect string `yaml:"dialect"`
	// DefaultDimension is the column results are grouped by when the user asks for no breakdown.
	DefaultDimension string `yaml:"default_dimension"`
	// AmountColumn is the column summed by default; AmountAlias is its output alias.
	AmountColumn string `yaml:"amount_column"`
	AmountAlias  string `yaml:"amount_alias"`
	// ForbiddenTokens extends the safety gate denylist for this dataset.
	ForbiddenTokens []string `yaml:"forbidden_tokens"`
	// Notes are dataset-specific rules appended to the interpretation prompt.
	Notes       []string    `yaml:"notes"`
	Tables      []Table     `yaml:"tables"`
	Hierarchies []Hierarchy `yaml:"hierarchies"`
}

// Validate checks that every logical name maps to exactly one physical name and that every
// hierarchy references known columns and assigns each child value to a single parent.
func (c *Catalog) Validate() error {
	if len(c.Tables) == 0 {
		return errors.New("catalog has no tables")
	}

	tables := make(map[string]struct{}, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" {
			return errors.New("table with empty logical name")
		}
		if t.Physical == "" {
			return fmt.Errorf("table %q has no physical identifier", t.Name)
		}
		key := strings.ToLower(t.Name)
		if _, ok := tables[key]; ok {
			return fmt.Errorf("duplicate logical table %q", t.Name)
		}
		tables[key] = struct{}{}

		if len(t.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", t.Name)
		}
		cols := make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			if col.Name == "" {
				return fmt.Errorf("table %q has a column with empty logical name", t.Name)
			}
			if col.Physical == "" {
				return fmt.Errorf("column %s.%s has no physical identifier", t.Name, col.Name)
			}
			ck := strings.ToLower(col.Name)
			if _, ok := cols[ck]; ok {
				return fmt.Errorf("duplicate logical column %s.%s", t.Name, col.Name)
			}
			cols[ck] = struct{}{}
		}
	}

	if c.DefaultDimension != "" {
		if _, ok := c.LookupColumn(c.DefaultDimension); !ok {
			return fmt.Errorf("default dimension %q is not a catalog column", c.DefaultDimension)
		}
	}
	if c.AmountColumn != "" {
		if _, ok := c.LookupColumn(c.AmountColumn); !ok {
			return fmt.Errorf("amount column %q is not a catalog column", c.AmountColumn)
		}
	}

	for _, h := range c.Hierarchies {
		if err := c.validateHierarchy(h); err != nil {
			return fmt.Errorf("hierarchy %q: %w", h.Name, err)
		}
	}
	return nil
}

func (c *Catalog) validateHierarchy(h Hierarchy) error {
	if len(h.Columns) < 2 {
		return errors.New("needs at least two levels")
	}
	for _, name := range h.Columns {
		if _, ok := c.LookupColumn(name); !ok {
			return fmt.Errorf("unknown column %q", name)
		}
	}
	for i, row := range h.Rows {
		if len(row) != len(h.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i+1, len(row), len(h.Columns))
		}
	}
	// Each adjacent (parent, child) level: a child value has exactly one parent value.
	for level := 1; level < len(h.Columns); level++ {
		parents := make(map[string]string)
		for _, row := range h.Rows {
			parent, child := row[level-1], row[level]
			if child == "" {
				continue
			}
			if prev, ok := parents[child]; ok && prev != parent {
				return fmt.Errorf("%s %q belongs to both %s %q and %q",
					h.Columns[level], child, h.Columns[level-1], prev, parent)
			}
			parents[child] = parent
		}
	}
	return nil
}

// Table returns the table with the given logical name (case-insensitive).
func (c *Catalog) Table(name string) (Table, bool) {
	for _, t := range c.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// PhysicalTable returns the physical identifier of a logical table.
func (c *Catalog) PhysicalTable(name string) (string, bool) {
	t, ok := c.Table(name)
	if !ok {
		return "", false
	}
	return t.Physical, true
}

// PhysicalColumn returns the physical identifier of a logical column in the given table.
func (c *Catalog) PhysicalColumn(table, column string) (string, bool) {
	t, ok := c.Table(table)
	if !ok {
		return "", false
	}
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, column) {
			return col.Physical, true
		}
	}
	return "", false
}

// LookupColumn finds an unqualified logical column. It only succeeds when exactly one table
// defines the name, so an ambiguous column is never silently resolved.
func (c *Catalog) LookupColumn(name string) (Column, bool) {
	var found Column
	n := 0
	for _, t := range c.Tables {
		for _, col := range t.Columns {
			if strings.EqualFold(col.Name, name) {
				found = col
				n++
			}
		}
	}
	return found, n == 1
}

// Hierarchy returns the hierarchy with the given name.
func (c *Catalog) Hierarchy(name string) (Hierarchy, bool) {
	for _, h := range c.Hierarchies {
		if h.Name == name {
			return h, true
		}
	}
	return Hierarchy{}, false
}

package pipeline

import (
	"fmt"
	"strings"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/pipeline/prompts"
)

// Prompts contains all the pipeline prompts loaded from embedded files.
type Prompts struct {
	Interpret   string // System prompt for NL to SQL translation
	Observe     string // System prompt for result observations
	ObserveData string // User prompt template carrying the query and result preview
	Rewrite     string // System prompt for the logical to physical rewrite pass
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Interpret, err = loadPrompt("INTERPRET.md"); err != nil {
		return nil, fmt.Errorf("failed to load INTERPRET: %w", err)
	}
	if p.Observe, err = loadPrompt("OBSERVE.md"); err != nil {
		return nil, fmt.Errorf("failed to load OBSERVE: %w", err)
	}
	if p.ObserveData, err = loadPrompt("OBSERVE_DATA.md"); err != nil {
		return nil, fmt.Errorf("failed to load OBSERVE_DATA: %w", err)
	}
	if p.Rewrite, err = loadPrompt("REWRITE.md"); err != nil {
		return nil, fmt.Errorf("failed to load REWRITE: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// BuildInterpretPrompt fills the interpretation template from the catalog.
func (p *Prompts) BuildInterpretPrompt(c *catalog.Catalog) string {
	alias := c.AmountAlias
	if alias == "" {
		alias = c.AmountColumn
	}
	var notes strings.Builder
	for _, n := range c.Notes {
		notes.WriteString("- " + n + "\n")
	}
	hierarchies := c.FormatHierarchies()
	if hierarchies == "" {
		hierarchies = "No value lists are loaded; ask for clarification whenever a value could belong to more than one column."
	}

	return strings.NewReplacer(
		"{{DIALECT}}", c.Dialect,
		"{{SCHEMA}}", strings.TrimSpace(c.FormatSchema()),
		"{{HIERARCHIES}}", strings.TrimSpace(hierarchies),
		"{{RELATIONS}}", c.FormatRelations(),
		"{{DEFAULT_DIMENSION}}", c.DefaultDimension,
		"{{AMOUNT_COLUMN}}", c.AmountColumn,
		"{{AMOUNT_ALIAS}}", alias,
		"{{NOTES}}", strings.TrimRight(notes.String(), "\n"),
	).Replace(p.Interpret)
}

// BuildRewritePrompt fills the rewrite template with the logical to physical mapping.
func (p *Prompts) BuildRewritePrompt(c *catalog.Catalog) string {
	var sb strings.Builder
	for _, t := range c.Tables {
		sb.WriteString("Table " + t.Name + " -> " + t.Physical + "\n")
		for _, col := range t.Columns {
			sb.WriteString("  Column " + col.Name + " -> " + col.Physical + "\n")
		}
	}
	return strings.NewReplacer(
		"{{DIALECT}}", c.Dialect,
		"{{MAPPING}}", strings.TrimRight(sb.String(), "\n"),
	).Replace(p.Rewrite)
}

// BuildObserveData fills the observation user prompt.
func (p *Prompts) BuildObserveData(query, rowCount, columns, preview string) string {
	return strings.NewReplacer(
		"{{QUERY}}", query,
		"{{ROW_COUNT}}", rowCount,
		"{{COLUMNS}}", columns,
		"{{PREVIEW}}", preview,
	).Replace(p.ObserveData)
}

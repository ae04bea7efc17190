// Package fixtures renders templated SQL seed scripts for tests.
package fixtures

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// seq generates a sequence of integers from start to end (inclusive)
func seq(start, end int) []int {
	if start > end {
		return []int{}
	}
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

var templateFuncs = template.FuncMap{
	"seq": seq,
}

// RenderTemplate renders a template string with the given data
func RenderTemplate(templateContent string, data any) (string, error) {
	var buf bytes.Buffer
	tmpl, err := template.New("").Funcs(templateFuncs).Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render fixture: %w", err)
	}
	return buf.String(), nil
}

// Statements renders the seed script at path and splits it into statements on semicolons that
// end a line. Blank statements are dropped.
func Statements(path string, data any) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	script, err := RenderTemplate(string(content), data)
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, part := range strings.Split(script, ";\n") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if part != "" {
			stmts = append(stmts, part)
		}
	}
	return stmts, nil
}

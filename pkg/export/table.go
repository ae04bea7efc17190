package export

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes header and rows as a plain text table.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}

// TableString is RenderTable into a string.
func TableString(header []string, rows [][]string) string {
	var sb strings.Builder
	RenderTable(&sb, header, rows)
	return sb.String()
}

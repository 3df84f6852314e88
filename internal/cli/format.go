package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// output receives human-readable command output; tests swap it.
	output io.Writer = os.Stdout

	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSection prints a section header
func PrintSection(title string) {
	_, _ = headerColor.Fprintf(output, "\n%s\n", title)
	_, _ = headerColor.Fprintln(output, strings.Repeat("═", len(title)))
}

// PrintSubsection prints a subsection header
func PrintSubsection(title string) {
	_, _ = labelColor.Fprintf(output, "\n%s\n", title)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	_, _ = successColor.Fprintf(output, "✓ %s\n", msg)
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	_, _ = warningColor.Fprintf(output, "⚠ %s\n", msg)
}

// PrintError prints an error message
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(output, "✗ %s\n", msg)
}

// PrintInfo prints an informational message
func PrintInfo(msg string) {
	_, _ = infoColor.Fprintf(output, "ℹ %s\n", msg)
}

// PrintLabelValue prints a label-value pair
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Fprintf(output, "  %s: ", label)
	_, _ = valueColor.Fprintln(output, value)
}

// PrintList prints a list of items with a bullet
func PrintList(items []string, indent int) {
	indentStr := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Fprintf(output, "%s• %s\n", indentStr, item)
	}
}

// PrintTable prints rows under aligned headers.
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	line := func(cells []string, clr *color.Color) {
		fmt.Fprint(output, "  ")
		for i, cell := range cells {
			if i >= len(colWidths) {
				break
			}
			if i > 0 {
				fmt.Fprint(output, "  ")
			}
			_, _ = clr.Fprintf(output, "%-*s", colWidths[i], cell)
		}
		fmt.Fprintln(output)
	}

	line(headers, headerColor)
	seps := make([]string, len(colWidths))
	for i, w := range colWidths {
		seps[i] = strings.Repeat("-", w)
	}
	line(seps, dimColor)
	for _, row := range rows {
		line(row, valueColor)
	}
}

// PrintEmptyState prints a message when there's no data to show
func PrintEmptyState(msg string) {
	_, _ = dimColor.Fprintf(output, "  %s\n", msg)
}

// PrintCount prints a count with proper formatting
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// percent formats a fraction as a percentage.
func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

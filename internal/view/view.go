// Package view provides output formatting for sfretrieve.
//
// A View is safe for concurrent use; retrieval workers log through a shared instance.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Output format constants.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
	FormatYAML  Format = "yaml"
)

// ValidFormats returns the list of valid output formats.
func ValidFormats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatPlain), string(FormatYAML)}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch format {
	case "", string(FormatTable), string(FormatJSON), string(FormatPlain), string(FormatYAML):
		return nil
	default:
		return fmt.Errorf("invalid output format: %q (valid formats: %s)", format, strings.Join(ValidFormats(), ", "))
	}
}

// View handles output formatting.
type View struct {
	Format  Format
	NoColor bool
	Verbose bool
	Out     io.Writer
	Err     io.Writer

	mu sync.Mutex
}

// New creates a new View with the given format.
// If noColor is true, colorized output is disabled.
func New(format Format, noColor bool) *View {
	if noColor {
		color.NoColor = true
	}

	return &View{
		Format:  format,
		NoColor: noColor,
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
}

// NewWithFormat creates a new View from a format string.
func NewWithFormat(format string, noColor bool) *View {
	return New(Format(format), noColor)
}

// SetOutput sets the output writer.
func (v *View) SetOutput(w io.Writer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Out = w
}

// SetError sets the error writer.
func (v *View) SetError(w io.Writer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Err = w
}

// IsStructured reports whether the view renders documents (json/yaml) rather than text.
func (v *View) IsStructured() bool {
	return v.Format == FormatJSON || v.Format == FormatYAML
}

// Table renders data as a formatted table with aligned columns.
func (v *View) Table(headers []string, rows [][]string) error {
	switch v.Format {
	case FormatJSON, FormatYAML:
		return v.Document(tableRecords(headers, rows))
	case FormatPlain:
		return v.Plain(rows)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	w := tabwriter.NewWriter(v.Out, 0, 0, 2, ' ', 0)

	headerLine := strings.Join(headers, "\t")
	if v.NoColor {
		_, _ = fmt.Fprintln(w, headerLine)
	} else {
		_, _ = fmt.Fprintln(w, color.New(color.Bold).Sprint(headerLine))
	}

	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return w.Flush()
}

// tableRecords converts table data into a list of objects keyed by lower-cased header.
func tableRecords(headers []string, rows [][]string) []map[string]string {
	results := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		item := make(map[string]string)
		for i, header := range headers {
			if i < len(row) {
				item[strings.ToLower(strings.ReplaceAll(header, " ", "_"))] = row[i]
			}
		}
		results = append(results, item)
	}
	return results
}

// Document renders data as JSON or YAML depending on the format. Text formats fall back to JSON.
func (v *View) Document(data interface{}) error {
	if v.Format == FormatYAML {
		return v.YAML(data)
	}
	return v.JSON(data)
}

// JSON renders data as formatted JSON.
func (v *View) JSON(data interface{}) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	enc := json.NewEncoder(v.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// YAML renders data as a YAML document.
func (v *View) YAML(data interface{}) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	enc := yaml.NewEncoder(v.Out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// Plain renders rows as tab-separated values without headers.
func (v *View) Plain(rows [][]string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, row := range rows {
		_, _ = fmt.Fprintln(v.Out, strings.Join(row, "\t"))
	}
	return nil
}

// Render renders data based on the current format.
// For table format, uses headers and rows.
// For JSON and YAML formats, uses data.
// For plain format, uses rows without headers.
func (v *View) Render(headers []string, rows [][]string, data interface{}) error {
	switch v.Format {
	case FormatJSON, FormatYAML:
		return v.Document(data)
	case FormatPlain:
		return v.Plain(rows)
	default:
		return v.Table(headers, rows)
	}
}

// Success prints a success message with a green checkmark.
func (v *View) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.NoColor {
		v.line(v.Out, "✓ "+msg)
	} else {
		v.line(v.Out, color.GreenString("✓ %s", msg))
	}
}

// Error prints an error message with a red X.
func (v *View) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.NoColor {
		v.line(v.Err, "✗ "+msg)
	} else {
		v.line(v.Err, color.RedString("✗ %s", msg))
	}
}

// Warning prints a warning message with a yellow warning sign.
func (v *View) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.NoColor {
		v.line(v.Err, "⚠ "+msg)
	} else {
		v.line(v.Err, color.YellowString("⚠ %s", msg))
	}
}

// Info prints an informational message.
func (v *View) Info(format string, args ...interface{}) {
	v.line(v.Out, fmt.Sprintf(format, args...))
}

// Debug prints a diagnostic message to the error stream when verbose output is enabled.
func (v *View) Debug(format string, args ...interface{}) {
	if !v.Verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if v.NoColor {
		v.line(v.Err, "· "+msg)
	} else {
		v.line(v.Err, color.HiBlackString("· %s", msg))
	}
}

// Print prints a message without newline.
func (v *View) Print(format string, args ...interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintf(v.Out, format, args...)
}

func (v *View) line(w io.Writer, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintln(w, msg)
}

// Truncate truncates a string to the specified length, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

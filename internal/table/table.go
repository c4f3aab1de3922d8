// Package table renders row data as a terminal table, CSV, JSON or YAML.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable   = "table"
	FormatCompact = "compact"
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
)

const (
	// OptionNoHeader hides the header where the format has one.
	OptionNoHeader = "noheader"

	// OptionHeader adds the header to csv output.
	OptionHeader = "header"
)

// Render writes data in format, which may carry comma-separated options,
// e.g. "csv,header". raw is what json and yaml encode.
func Render(w io.Writer, format string, header []string, data [][]string, raw any) error {
	fields := strings.SplitN(format, ",", 2)
	format = fields[0]

	var options []string
	if len(fields) == 2 {
		options = strings.Split(fields[1], ",")
		if slices.Contains(options, OptionNoHeader) {
			header = nil
		}
	}

	switch format {
	case FormatTable, "":
		t := baseTable(w, header, data)
		t.SetRowLine(true)
		t.Render()
	case FormatCompact:
		t := baseTable(w, header, data)
		t.SetColumnSeparator("")
		t.SetHeaderLine(false)
		t.SetBorder(false)
		t.Render()
	case FormatCSV:
		cw := csv.NewWriter(w)
		if header != nil && slices.Contains(options, OptionHeader) {
			if err := cw.Write(header); err != nil {
				return err
			}
		}
		if err := cw.WriteAll(data); err != nil {
			return err
		}
		return cw.Error()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	case FormatYAML:
		out, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("invalid format %q", format)
	}
	return nil
}

// ValidateFormat checks a --format flag value.
func ValidateFormat(value string) error {
	fields := strings.SplitN(value, ",", 2)
	if len(fields) == 2 {
		for _, option := range strings.Split(fields[1], ",") {
			switch option {
			case OptionNoHeader, OptionHeader, "":
			default:
				return fmt.Errorf("invalid modifier %q on --format (%q)", option, value)
			}
		}
	}
	switch fields[0] {
	case FormatTable, FormatCompact, FormatCSV, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("invalid value %q for --format", fields[0])
}

func baseTable(w io.Writer, header []string, data [][]string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	if header != nil {
		t.SetHeader(header)
	}
	t.AppendBulk(data)
	return t
}

package history

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/table"
)

// Column headers, in display order.
var Columns = []string{
	"ID", "PERIOD", "REQUESTER", "APPROVERS", "USERS", "CLUSTER",
	"NAMESPACES", "JUSTIFICATION", "ROLE", "CREATED", "STATUS", "NOTES",
}

const timeLayout = "2006-01-02 15:04"

// Table is a filterable, sortable view over history rows.
type Table struct {
	rows []models.AccessRequest
}

// NewTable wraps rows.
func NewTable(rows []models.AccessRequest) *Table {
	return &Table{rows: rows}
}

// Rows returns the rows in current order.
func (t *Table) Rows() []models.AccessRequest {
	return append([]models.AccessRequest(nil), t.rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Filter returns the rows with any cell containing substr, ignoring case.
func (t *Table) Filter(substr string) *Table {
	substr = strings.ToLower(strings.TrimSpace(substr))
	if substr == "" {
		return NewTable(t.Rows())
	}
	var out []models.AccessRequest
	for _, r := range t.rows {
		for _, cell := range cells(r) {
			if strings.Contains(strings.ToLower(cell), substr) {
				out = append(out, r)
				break
			}
		}
	}
	return NewTable(out)
}

// Sort orders rows by the named column. Sorting is stable.
func (t *Table) Sort(column string, desc bool) error {
	idx := -1
	for i, c := range Columns {
		if strings.EqualFold(c, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unknown column %q", column)
	}

	less := func(a, b models.AccessRequest) bool {
		switch Columns[idx] {
		case "ID":
			return a.ID < b.ID
		case "PERIOD":
			return a.StartDate.Before(b.StartDate)
		case "CREATED":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return cells(a)[idx] < cells(b)[idx]
		}
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		if desc {
			return less(t.rows[j], t.rows[i])
		}
		return less(t.rows[i], t.rows[j])
	})
	return nil
}

// Data returns the rows as string cells.
func (t *Table) Data() [][]string {
	data := make([][]string, len(t.rows))
	for i, r := range t.rows {
		data[i] = cells(r)
	}
	return data
}

// Render writes the table in format (see package table).
func (t *Table) Render(w io.Writer, format string) error {
	return table.Render(w, format, Columns, t.Data(), t.rows)
}

// ExportCSV writes the table as CSV with a header row.
func (t *Table) ExportCSV(w io.Writer) error {
	return t.Render(w, table.FormatCSV+","+table.OptionHeader)
}

func cells(r models.AccessRequest) []string {
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		formatTime(r.StartDate) + " - " + formatTime(r.EndDate),
		r.Username,
		strings.Join(r.ApproverNames, ", "),
		strings.Join(r.Users, ", "),
		r.ClusterName,
		strings.Join(r.Namespaces, ", "),
		r.Justification,
		r.RoleName,
		formatTime(r.CreatedAt),
		string(r.Status),
		r.Notes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

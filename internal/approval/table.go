package approval

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/table"
)

// Columns are the pending-request table headings. SEL marks selected rows.
var Columns = []string{"SEL", "ID", "REQUESTER", "CLUSTER", "ROLE", "NAMESPACES", "USERS", "PERIOD", "JUSTIFICATION"}

// RenderPending writes rows in format (see package table). Rows whose id
// is in selected are marked.
func RenderPending(w io.Writer, format string, rows []models.PendingRequest, selected []uint) error {
	marked := make(map[uint]bool, len(selected))
	for _, id := range selected {
		marked[id] = true
	}
	data := make([][]string, len(rows))
	for i, r := range rows {
		sel := ""
		if marked[r.ID] {
			sel = "*"
		}
		data[i] = []string{
			sel,
			strconv.FormatUint(uint64(r.ID), 10),
			r.Username,
			r.ClusterName,
			r.RoleName,
			strings.Join(r.Namespaces, ", "),
			strings.Join(r.Users, ", "),
			period(r.StartDate, r.EndDate),
			r.Justification,
		}
	}
	return table.Render(w, format, Columns, data, rows)
}

func period(start, end time.Time) string {
	const layout = "2006-01-02 15:04"
	return start.Local().Format(layout) + " - " + end.Local().Format(layout)
}

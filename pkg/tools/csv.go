package tools

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// renderCSV formats a header and rows as CSV text, the same shape the
// original raylight exports use. An empty row set still yields the header
// so the caller can see the column names.
func renderCSV(header []string, rows [][]string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	w.Flush()
	return b.String()
}

// formatScalar renders one result cell. Flow values arrive as JSON
// scalars; numbers keep their shortest representation instead of the
// float64 default formatting.
func formatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

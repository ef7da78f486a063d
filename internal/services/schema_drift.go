package services

import (
	"strings"

	"hisab/internal/core"
	"hisab/internal/ports"
)

// looksLikeMissingColumn reports whether err says column is absent from the
// table. Older deployments lack user_id or category; the provider phrases
// that either as a schema cache miss or as a missing column.
func looksLikeMissingColumn(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, column) {
		return false
	}
	return strings.Contains(msg, "schema cache") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "column")
}

func draftRow(d core.Draft) ports.Row {
	return ports.Row{
		ports.ColType:        string(d.Kind),
		ports.ColAmount:      d.Amount,
		ports.ColDescription: d.Description,
		ports.ColCategory:    d.Category,
	}
}

func without(row ports.Row, cols ...string) ports.Row {
	out := make(ports.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, c := range cols {
		delete(out, c)
	}
	return out
}

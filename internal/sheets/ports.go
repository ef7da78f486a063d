package sheets

import (
	"context"

	"hisab/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors ledger events into a spreadsheet, one row per
	// transaction keyed by transaction id.
	LedgerExporter interface {
		// Append adds a row for a newly created transaction.
		Append(ctx context.Context, e core.LedgerEvent) (rowRef string, err error)
		// Upsert rewrites the transaction's row, appending one when absent.
		Upsert(ctx context.Context, e core.LedgerEvent) (rowRef string, err error)
		// Clear blanks the transaction's row. A missing row is not an error.
		Clear(ctx context.Context, transactionID string) error
	}
)

// Header is the first row of an exported ledger sheet.
var Header = []string{"ID", "Date", "Type", "Amount", "Category", "Description", "Owner", "Updated"}

// Row renders e as a sheet row in Header order.
func Row(e core.LedgerEvent) []any {
	return []any{
		e.TransactionID,
		e.TransactionDate().UTC().Format("2006-01-02"),
		string(e.Kind),
		e.Amount.Format(),
		core.NormalizeCategory(e.Category),
		e.Description,
		e.ActorEmail,
		e.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

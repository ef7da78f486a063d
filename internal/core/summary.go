package core

import "github.com/shopspring/decimal"

// Totals holds per-kind sums over a set of transactions.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Balance is income minus expense.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Sum totals amounts by kind. Rows whose kind is neither value are ignored.
func Sum(txs []Transaction) Totals {
	totals := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range txs {
		switch t.Kind {
		case Income:
			totals.Income = totals.Income.Add(t.Amount.Decimal)
		case Expense:
			totals.Expense = totals.Expense.Add(t.Amount.Decimal)
		}
	}
	return totals
}

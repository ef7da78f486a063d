package memory

import (
	"context"
	"fmt"
	"sync"

	"hisab/internal/core"
	ports "hisab/internal/sheets"
)

// Row is one exported sheet row. Cleared rows keep their position with no
// values, the way a cleared spreadsheet range does.
type Row struct {
	TransactionID string
	Values        []any
}

// Store is an in-process ledger sheet.
type Store struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

var _ ports.LedgerExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// SetError makes every following call fail with err until reset with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Append implements sheets.LedgerExporter
func (s *Store) Append(_ context.Context, e core.LedgerEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, Row{TransactionID: e.TransactionID, Values: ports.Row(e)})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Upsert implements sheets.LedgerExporter
func (s *Store) Upsert(_ context.Context, e core.LedgerEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if i := s.index(e.TransactionID); i >= 0 {
		s.rows[i].Values = ports.Row(e)
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, Row{TransactionID: e.TransactionID, Values: ports.Row(e)})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Clear implements sheets.LedgerExporter
func (s *Store) Clear(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if i := s.index(transactionID); i >= 0 {
		s.rows[i] = Row{}
	}
	return nil
}

// Rows returns a copy of the sheet contents.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = Row{TransactionID: r.TransactionID, Values: append([]any(nil), r.Values...)}
	}
	return out
}

func (s *Store) index(transactionID string) int {
	if transactionID == "" {
		return -1
	}
	for i, r := range s.rows {
		if r.TransactionID == transactionID {
			return i
		}
	}
	return -1
}

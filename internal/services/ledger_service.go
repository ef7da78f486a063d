package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"hisab/internal/core"
	"hisab/internal/ports"
)

const sharedListTimeout = 30 * time.Second

// LedgerService reads and writes the shared transactions table on behalf of
// the viewer whose access token rides in ctx.
//
// Ownership is enforced only by the equality filters it sends with update and
// delete calls. A caller holding a token can bypass it by talking to the
// table directly; row-level policies on the hosted side are the real guard.
type LedgerService struct {
	table     ports.TransactionTable
	publisher ports.EventPublisher
	group     singleflight.Group
	now       func() time.Time
}

// NewLedgerService returns a service over table. A nil table yields a service
// that reports ErrNotConfigured and reads as empty. publisher may be nil.
func NewLedgerService(table ports.TransactionTable, publisher ports.EventPublisher) *LedgerService {
	return &LedgerService{
		table:     table,
		publisher: publisher,
		now:       time.Now,
	}
}

// Configured reports whether a backend is attached.
func (s *LedgerService) Configured() bool {
	return s != nil && s.table != nil
}

// Fetch returns every row, newest first. Read failures are logged and yield
// an empty list.
func (s *LedgerService) Fetch(ctx context.Context) []core.Transaction {
	txs, err := s.load(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch transactions", "error", err)
		return []core.Transaction{}
	}
	return txs
}

// load collapses concurrent reads for the same access token into one call.
// The shared call is detached from any single caller's cancellation and
// bounded by sharedListTimeout; each caller still stops waiting when its own
// ctx ends.
func (s *LedgerService) load(ctx context.Context) ([]core.Transaction, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	ch := s.group.DoChan(ports.AccessToken(ctx), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedListTimeout)
		defer cancel()
		return s.table.List(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rows, _ := res.Val.([]core.Transaction)
		return append([]core.Transaction{}, rows...), nil
	}
}

func (s *LedgerService) find(ctx context.Context, id string) (*core.Transaction, error) {
	txs, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for i := range txs {
		if txs[i].ID == id {
			return &txs[i], nil
		}
	}
	return nil, nil
}

// Create inserts a row owned by v. The payload shrinks step by step when the
// table lacks user_id and then category; any other failure is returned as is.
func (s *LedgerService) Create(ctx context.Context, v core.Viewer, d core.Draft) (*core.Transaction, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	payload := draftRow(d)
	payload[ports.ColUserEmail] = v.Email
	full := without(payload)
	full[ports.ColUserID] = v.ID

	tx, err := s.table.Insert(ctx, full)
	if err != nil {
		if !looksLikeMissingColumn(err, ports.ColUserID) {
			return nil, err
		}
		slog.WarnContext(ctx, "Table has no user_id column, inserting without it", "error", err)
		tx, err = s.table.Insert(ctx, payload)
		if err != nil {
			if !looksLikeMissingColumn(err, ports.ColCategory) {
				return nil, err
			}
			slog.WarnContext(ctx, "Table has no category column, inserting without it", "error", err)
			tx, err = s.table.Insert(ctx, without(payload, ports.ColCategory))
			if err != nil {
				return nil, err
			}
		}
	}

	s.publish(ctx, core.OpCreated, v, *tx)
	return tx, nil
}

// Update patches row id after checking v owns it in the current ledger.
func (s *LedgerService) Update(ctx context.Context, v core.Viewer, id string, d core.Draft) (*core.Transaction, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil || !existing.OwnedBy(v) {
		return nil, ErrNotOwner
	}

	patch := draftRow(d)
	err = s.table.Update(ctx, patch, ports.Match{ports.ColID: id, ports.ColUserID: v.ID})
	if err != nil {
		if !looksLikeMissingColumn(err, ports.ColUserID) {
			return nil, err
		}
		byEmail := ports.Match{ports.ColID: id, ports.ColUserEmail: v.Email}
		err = s.table.Update(ctx, patch, byEmail)
		if err != nil {
			if !looksLikeMissingColumn(err, ports.ColCategory) {
				return nil, err
			}
			if err := s.table.Update(ctx, without(patch, ports.ColCategory), byEmail); err != nil {
				return nil, err
			}
		}
	}

	updated := *existing
	updated.Kind = d.Kind
	updated.Amount = d.Amount
	updated.Description = d.Description
	updated.Category = d.Category
	s.publish(ctx, core.OpUpdated, v, updated)
	return &updated, nil
}

// Delete removes row id after checking v owns it in the current ledger.
func (s *LedgerService) Delete(ctx context.Context, v core.Viewer, id string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil || !existing.OwnedBy(v) {
		return ErrNotOwner
	}

	err = s.table.Delete(ctx, ports.Match{ports.ColID: id, ports.ColUserID: v.ID})
	if err != nil {
		if !looksLikeMissingColumn(err, ports.ColUserID) {
			return err
		}
		if err := s.table.Delete(ctx, ports.Match{ports.ColID: id, ports.ColUserEmail: v.Email}); err != nil {
			return err
		}
	}

	s.publish(ctx, core.OpDeleted, v, *existing)
	return nil
}

func (s *LedgerService) publish(ctx context.Context, op core.EventOp, v core.Viewer, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	e := core.LedgerEvent{
		ID:            uuid.NewString(),
		Op:            op,
		TransactionID: tx.ID,
		ActorID:       v.ID,
		ActorEmail:    v.Email,
		Kind:          tx.Kind,
		Amount:        tx.Amount,
		Description:   tx.Description,
		Category:      tx.NormalizedCategory(),
		CreatedAt:     tx.CreatedAt,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.PublishLedgerEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"op", op,
			"transaction_id", tx.ID,
			"error", err)
	}
}

package services

import (
	"context"
	"errors"

	"hisab/internal/core"
	"hisab/internal/ports"
)

type eventRecorder interface {
	RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error)
}

// JournalPublisher records events in the local journal so recent activity
// is available without a broker.
type JournalPublisher struct {
	journal eventRecorder
}

func NewJournalPublisher(journal eventRecorder) *JournalPublisher {
	return &JournalPublisher{journal: journal}
}

func (p *JournalPublisher) PublishLedgerEvent(ctx context.Context, e core.LedgerEvent) error {
	_, err := p.journal.RecordEvent(ctx, e)
	return err
}

// Publishers fans an event out to every publisher and joins their errors.
type Publishers []ports.EventPublisher

func (ps Publishers) PublishLedgerEvent(ctx context.Context, e core.LedgerEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PublishLedgerEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

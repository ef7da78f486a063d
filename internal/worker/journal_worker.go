package worker

import (
	"context"
	"fmt"
	"log/slog"

	"hisab/internal/amqp"
	"hisab/internal/services"
	"hisab/internal/storage"
)

// JournalWorker consumes ledger events from the broker, records them in the
// local journal and mirrors them into the spreadsheet.
type JournalWorker struct {
	journal   services.EventJournal
	exporter  *services.ExportProcessor
	batchSize int
}

func NewJournalWorker(journal services.EventJournal, exporter *services.ExportProcessor, batchSize int) *JournalWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &JournalWorker{
		journal:   journal,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single ledger event message from AMQP. Only a
// failure to record the event is returned, so the broker redelivers it; export
// failures stay in the journal for the periodic sweep.
func (w *JournalWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"id", msg.ID,
		"op", msg.Op,
		"transaction_id", msg.TransactionID)

	inserted, err := w.journal.RecordEvent(ctx, msg.LedgerEvent)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	entry, err := w.journal.GetEvent(ctx, msg.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload recorded event", "id", msg.ID, "error", err)
		return nil
	}
	if entry.Status != storage.StatusPending {
		slog.DebugContext(ctx, "Event already handled, skipping export",
			"id", msg.ID,
			"status", entry.Status,
			"duplicate", !inserted)
		return nil
	}

	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportEntry(ctx, *entry); err != nil {
		slog.WarnContext(ctx, "Export deferred to sweep", "id", msg.ID, "error", err)
	}
	return nil
}

// StartupSyncCheck exports events left pending by a previous run, e.g. after
// worker downtime or a lost broker message.
func (w *JournalWorker) StartupSyncCheck(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	stats, err := w.exporter.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get journal stats for startup check: %w", err)
	}
	if stats.Pending == 0 {
		slog.InfoContext(ctx, "No pending events found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending events on startup, processing...",
		"count", stats.Pending)

	exported, failed := w.exporter.ProcessPending(ctx, w.batchSize*5)

	slog.InfoContext(ctx, "Startup sync completed",
		"pending", stats.Pending,
		"exported", exported,
		"errors", failed)

	return nil
}

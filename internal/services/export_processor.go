package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hisab/internal/core"
	"hisab/internal/sheets"
	"hisab/internal/storage"
)

// EventJournal is the durable record of ledger events awaiting export.
type EventJournal interface {
	RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error)
	GetEvent(ctx context.Context, id string) (*storage.JournalEntry, error)
	GetPendingEvents(ctx context.Context, limit int) ([]storage.JournalEntry, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportFailed(ctx context.Context, id, reason string, maxAttempts int) error
	CleanupExported(ctx context.Context, cutoff time.Time) (int64, error)
	RetryFailed(ctx context.Context) (int64, error)
	GetEventStats(ctx context.Context) (storage.EventStats, error)
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to check for pending events (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of events to export per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts before an event is marked failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to purge exported events (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old exported events must be before purge (default: 7 days)
	CleanupAge time.Duration
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      7 * 24 * time.Hour,
	}
}

// ExportProcessor drains the event journal into the spreadsheet.
type ExportProcessor struct {
	journal  EventJournal
	exporter sheets.LedgerExporter
	config   ExportProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(journal EventJournal, exporter sheets.LedgerExporter, config ExportProcessorConfig) *ExportProcessor {
	return &ExportProcessor{
		journal:  journal,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessPending(ctx, p.config.BatchSize)
		case <-cleanupTicker.C:
			p.cleanupExported(ctx)
		}
	}
}

// ProcessPending exports up to limit pending events, oldest first, and
// reports how many succeeded and failed.
func (p *ExportProcessor) ProcessPending(ctx context.Context, limit int) (exported, failed int) {
	entries, err := p.journal.GetPendingEvents(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending events", "error", err)
		return 0, 0
	}
	if len(entries) == 0 {
		return 0, 0
	}

	slog.DebugContext(ctx, "Exporting pending events", "count", len(entries))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return exported, failed
		}
		if err := p.ExportEntry(ctx, entry); err != nil {
			failed++
			continue
		}
		exported++
	}
	return exported, failed
}

// ExportEntry writes one journal entry to the sheet and records the outcome.
func (p *ExportProcessor) ExportEntry(ctx context.Context, entry storage.JournalEntry) error {
	ref, err := p.export(ctx, entry.LedgerEvent)
	if err != nil {
		p.handleFailure(ctx, entry, err)
		return err
	}
	if err := p.journal.MarkExported(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark event exported", "id", entry.ID, "error", err)
	}
	slog.InfoContext(ctx, "Exported ledger event",
		"id", entry.ID,
		"op", entry.Op,
		"transaction_id", entry.TransactionID,
		"sheets_ref", ref)
	return nil
}

func (p *ExportProcessor) export(ctx context.Context, e core.LedgerEvent) (string, error) {
	if p.exporter == nil {
		return "", errors.New("no exporter configured")
	}
	switch e.Op {
	case core.OpCreated:
		return p.exporter.Append(ctx, e)
	case core.OpUpdated:
		return p.exporter.Upsert(ctx, e)
	case core.OpDeleted:
		return "", p.exporter.Clear(ctx, e.TransactionID)
	default:
		return "", fmt.Errorf("unknown operation: %s", e.Op)
	}
}

func (p *ExportProcessor) handleFailure(ctx context.Context, entry storage.JournalEntry, exportErr error) {
	slog.WarnContext(ctx, "Event export failed",
		"id", entry.ID,
		"op", entry.Op,
		"attempt", entry.Attempts+1,
		"error", exportErr)

	if err := p.journal.MarkExportFailed(ctx, entry.ID, exportErr.Error(), p.config.MaxRetries); err != nil {
		slog.ErrorContext(ctx, "Failed to record export failure", "id", entry.ID, "error", err)
	}
	if entry.Attempts+1 >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Event export failed permanently after max retries",
			"id", entry.ID,
			"transaction_id", entry.TransactionID,
			"attempts", entry.Attempts+1)
	}
}

func (p *ExportProcessor) cleanupExported(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	n, err := p.journal.CleanupExported(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up exported events", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up exported events", "count", n)
	}
}

func (p *ExportProcessor) Stats(ctx context.Context) (storage.EventStats, error) {
	return p.journal.GetEventStats(ctx)
}

// RetryFailed puts permanently failed events back in the queue.
func (p *ExportProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.journal.RetryFailed(ctx)
}

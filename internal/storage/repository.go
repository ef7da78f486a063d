package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/ports"

	_ "modernc.org/sqlite"
)

var ErrEventNotFound = errors.New("ledger event not found")

type EventStatus string

const (
	StatusPending  EventStatus = "pending"
	StatusExported EventStatus = "exported"
	StatusFailed   EventStatus = "failed"
)

// JournalEntry is a recorded ledger event with its export state.
type JournalEntry struct {
	core.LedgerEvent
	Status     EventStatus
	Attempts   int
	LastError  string
	RecordedAt time.Time
	ExportedAt time.Time
}

type EventStats struct {
	Pending  int64
	Exported int64
	Failed   int64
}

// SQLiteRepository stores server-side sessions and the ledger event journal.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.SessionStore = (*SQLiteRepository)(nil)

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema migrated", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// SaveSession implements ports.SessionStore. Saving an existing id replaces it.
func (r *SQLiteRepository) SaveSession(ctx context.Context, s ports.StoredSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, access_token, refresh_token, token_expiry, user_id, email, full_name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			user_id = excluded.user_id,
			email = excluded.email,
			full_name = excluded.full_name,
			expires_at = excluded.expires_at`,
		s.ID, s.AccessToken, s.RefreshToken, toMillis(s.TokenExpiry),
		s.Viewer.ID, s.Viewer.Email, s.Viewer.FullName,
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession implements ports.SessionStore. Expired sessions are reported as
// ports.ErrSessionNotFound.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*ports.StoredSession, error) {
	var (
		s                                 ports.StoredSession
		tokenExpiry, createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, access_token, refresh_token, token_expiry, user_id, email, full_name, created_at, expires_at
		FROM sessions WHERE id = ? AND expires_at > ?`,
		id, toMillis(r.now())).Scan(
		&s.ID, &s.AccessToken, &s.RefreshToken, &tokenExpiry,
		&s.Viewer.ID, &s.Viewer.Email, &s.Viewer.FullName, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.TokenExpiry = fromMillis(tokenExpiry)
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return &s, nil
}

// DeleteSession implements ports.SessionStore
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(r.now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// CleanExpired lets the cache manager sweep expired sessions.
func (r *SQLiteRepository) CleanExpired() int {
	n, err := r.DeleteExpiredSessions(context.Background())
	if err != nil {
		slog.Error("Failed to clean expired sessions", "error", err)
		return 0
	}
	return int(n)
}

// RecordEvent stores e unless an event with the same id exists. It reports
// whether a new row was written.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error) {
	if e.ID == "" {
		return false, errors.New("record event: missing id")
	}
	if !e.Op.Valid() {
		return false, fmt.Errorf("record event: invalid op %q", e.Op)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ledger_events
			(id, op, transaction_id, actor_id, actor_email, kind, amount, description, category,
			 created_at, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Op), e.TransactionID, e.ActorID, e.ActorEmail, string(e.Kind),
		e.Amount.String(), e.Description, e.Category,
		toMillis(e.CreatedAt), toMillis(e.OccurredAt), toMillis(r.now()))
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return n == 1, nil
}

const journalColumns = `id, op, transaction_id, actor_id, actor_email, kind, amount, description, category,
	created_at, occurred_at, recorded_at, status, attempts, last_error, COALESCE(exported_at, 0)`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (JournalEntry, error) {
	var (
		e                                             JournalEntry
		op, kind, amount, status                      string
		createdAt, occurredAt, recordedAt, exportedAt int64
	)
	err := row.Scan(&e.ID, &op, &e.TransactionID, &e.ActorID, &e.ActorEmail, &kind, &amount,
		&e.Description, &e.Category, &createdAt, &occurredAt, &recordedAt, &status, &e.Attempts, &e.LastError, &exportedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		d = decimal.Zero
	}
	e.Op = core.EventOp(op)
	e.Kind = core.Kind(kind)
	e.Amount = core.NewAmount(d)
	e.Status = EventStatus(status)
	e.CreatedAt = fromMillis(createdAt)
	e.OccurredAt = fromMillis(occurredAt)
	e.RecordedAt = fromMillis(recordedAt)
	e.ExportedAt = fromMillis(exportedAt)
	return e, nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetEvent(ctx context.Context, id string) (*JournalEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM ledger_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// GetPendingEvents returns up to limit events awaiting export, oldest first.
func (r *SQLiteRepository) GetPendingEvents(ctx context.Context, limit int) ([]JournalEntry, error) {
	out, err := r.queryEntries(ctx,
		`SELECT `+journalColumns+` FROM ledger_events WHERE status = ? ORDER BY occurred_at ASC, recorded_at ASC LIMIT ?`,
		string(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending events: %w", err)
	}
	return out, nil
}

// RecentEvents returns the latest limit events, newest first.
func (r *SQLiteRepository) RecentEvents(ctx context.Context, limit int) ([]JournalEntry, error) {
	out, err := r.queryEntries(ctx,
		`SELECT `+journalColumns+` FROM ledger_events ORDER BY occurred_at DESC, recorded_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = ?, exported_at = ?, last_error = '' WHERE id = ?`,
		string(StatusExported), toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportFailed counts a failed attempt. The event stays pending until
// maxAttempts is reached, then becomes failed.
func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ledger_events SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?`,
		reason, maxAttempts, string(StatusFailed), string(StatusPending), id)
	if err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// RetryFailed moves failed events back to pending with a fresh attempt count.
func (r *SQLiteRepository) RetryFailed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = ?, attempts = 0 WHERE status = ?`,
		string(StatusPending), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("retry failed events: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExported removes exported events recorded before cutoff.
func (r *SQLiteRepository) CleanupExported(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ledger_events WHERE status = ? AND exported_at < ?`,
		string(StatusExported), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup exported events: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) GetEventStats(ctx context.Context) (EventStats, error) {
	var s EventStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'exported' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM ledger_events`).Scan(&s.Pending, &s.Exported, &s.Failed)
	if err != nil {
		return EventStats{}, fmt.Errorf("event stats: %w", err)
	}
	return s, nil
}

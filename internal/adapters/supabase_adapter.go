package adapters

import (
	"context"
	"fmt"
	"strings"

	"hisab/internal/core"
	"hisab/internal/ports"
	"hisab/internal/supabase"
)

// TransactionsTable is the hosted table holding the shared ledger.
const TransactionsTable = "transactions"

// SupabaseBackend adapts supabase.Client to ports.TransactionTable and
// ports.Identity.
type SupabaseBackend struct {
	client *supabase.Client
	table  string
}

var (
	_ ports.TransactionTable = (*SupabaseBackend)(nil)
	_ ports.Identity         = (*SupabaseBackend)(nil)
)

func NewSupabaseBackend(client *supabase.Client) *SupabaseBackend {
	return &SupabaseBackend{client: client, table: TransactionsTable}
}

func (b *SupabaseBackend) query(ctx context.Context) *supabase.Query {
	return b.client.From(b.table).As(ports.AccessToken(ctx))
}

// List implements ports.TransactionTable
func (b *SupabaseBackend) List(ctx context.Context) ([]core.Transaction, error) {
	var rows []core.Transaction
	if err := b.query(ctx).Order(ports.ColCreatedAt, false).Select(ctx, "*", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert implements ports.TransactionTable
func (b *SupabaseBackend) Insert(ctx context.Context, row ports.Row) (*core.Transaction, error) {
	var stored []core.Transaction
	if err := b.query(ctx).Insert(ctx, []ports.Row{row}, &stored); err != nil {
		return nil, err
	}
	if len(stored) != 1 {
		return nil, fmt.Errorf("insert returned %d rows", len(stored))
	}
	return &stored[0], nil
}

// Update implements ports.TransactionTable
func (b *SupabaseBackend) Update(ctx context.Context, patch ports.Row, m ports.Match) error {
	q := b.query(ctx)
	for col, val := range m {
		q = q.Eq(col, val)
	}
	return q.Update(ctx, patch)
}

// Delete implements ports.TransactionTable
func (b *SupabaseBackend) Delete(ctx context.Context, m ports.Match) error {
	q := b.query(ctx)
	for col, val := range m {
		q = q.Eq(col, val)
	}
	return q.Delete(ctx)
}

// SignIn implements ports.Identity
func (b *SupabaseBackend) SignIn(ctx context.Context, email, password string) (*ports.Session, error) {
	s, err := b.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toSession(s), nil
}

// SignUp implements ports.Identity
func (b *SupabaseBackend) SignUp(ctx context.Context, email, password, fullName string) error {
	_, err := b.client.SignUp(ctx, email, password, map[string]any{"full_name": fullName})
	return err
}

// Refresh implements ports.Identity
func (b *SupabaseBackend) Refresh(ctx context.Context, refreshToken string) (*ports.Session, error) {
	s, err := b.client.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return toSession(s), nil
}

// CurrentUser implements ports.Identity
func (b *SupabaseBackend) CurrentUser(ctx context.Context, accessToken string) (core.Viewer, error) {
	u, err := b.client.GetUser(ctx, accessToken)
	if err != nil {
		return core.Viewer{}, err
	}
	return toViewer(*u), nil
}

// SignOut implements ports.Identity
func (b *SupabaseBackend) SignOut(ctx context.Context, accessToken string) error {
	return b.client.SignOut(ctx, accessToken)
}

func toSession(s *supabase.Session) *ports.Session {
	return &ports.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.Expiry(),
		Viewer:       toViewer(s.User),
	}
}

func toViewer(u supabase.User) core.Viewer {
	return core.Viewer{
		ID:       u.ID,
		Email:    u.Email,
		FullName: strings.TrimSpace(u.FullName()),
	}
}

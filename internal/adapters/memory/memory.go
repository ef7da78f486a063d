// Package memory is an in-process stand-in for the hosted backend. It serves
// the same table and identity contracts and can pretend that some columns of
// the transactions table do not exist, the way an older deployment would.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/ports"
)

var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrUserExists         = errors.New("User already registered")
	ErrInvalidToken       error = ports.RejectedError("invalid JWT: unable to parse or verify signature")
	ErrInvalidRefresh     error = ports.RejectedError("Invalid Refresh Token: Refresh Token Not Found")
)

type user struct {
	id       string
	email    string
	password string
	fullName string
}

type grant struct {
	userID  string
	expires time.Time
}

// Store implements ports.TransactionTable and ports.Identity.
type Store struct {
	mu       sync.Mutex
	rows     []core.Transaction
	users    map[string]*user // by email
	access   map[string]grant
	refresh  map[string]string // refresh token -> user id
	missing  map[string]bool
	inserts  int
	now      func() time.Time
	tokenTTL time.Duration
}

var (
	_ ports.TransactionTable = (*Store)(nil)
	_ ports.Identity         = (*Store)(nil)
)

type Option func(*Store)

// WithMissingColumns makes the table reject any payload or filter naming one
// of cols, with the same messages the hosted API uses.
func WithMissingColumns(cols ...string) Option {
	return func(s *Store) {
		for _, c := range cols {
			s.missing[c] = true
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTokenTTL sets how long issued access tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Store) { s.tokenTTL = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:    map[string]*user{},
		access:   map[string]grant{},
		refresh:  map[string]string{},
		missing:  map[string]bool{},
		now:      time.Now,
		tokenTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromFiles seeds users from base/seed_users.txt, one
// "email:password:Full Name" per line, and rows from base/transactions.json,
// a JSON array in the table's column names. Missing files are skipped.
func NewFromFiles(base string, opts ...Option) *Store {
	s := New(opts...)
	for _, line := range readLines(filepath.Join(base, "seed_users.txt")) {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 2 {
			continue
		}
		name := ""
		if len(parts) == 3 {
			name = parts[2]
		}
		_ = s.SignUp(context.Background(), parts[0], parts[1], name)
	}
	if rows, err := readRows(filepath.Join(base, "transactions.json"), s.now); err == nil {
		s.Seed(rows...)
	}
	return s
}

func readRows(path string, now func() time.Time) ([]core.Transaction, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []core.Transaction
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now()
		}
	}
	return rows, nil
}

// Inserts returns how many rows were stored since creation.
func (s *Store) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// Seed stores rows as-is, bypassing column checks.
func (s *Store) Seed(rows ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

// Rows returns a copy of the stored rows in insertion order.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}

func (s *Store) authorize(ctx context.Context) error {
	g, ok := s.access[ports.AccessToken(ctx)]
	if !ok || !s.now().Before(g.expires) {
		return ErrInvalidToken
	}
	return nil
}

func missingPayloadColumn(col string) error {
	return fmt.Errorf("Could not find the '%s' column of 'transactions' in the schema cache", col)
}

func missingFilterColumn(col string) error {
	return fmt.Errorf("column transactions.%s does not exist", col)
}

// Columns in reverse order of introduction; the newest missing column is
// the one reported.
var columnOrder = []string{
	ports.ColUserID,
	ports.ColCategory,
	ports.ColUserEmail,
	ports.ColDescription,
	ports.ColAmount,
	ports.ColType,
	ports.ColCreatedAt,
	ports.ColID,
}

// checkColumns validates filters before the payload, so a missing owner
// filter is reported ahead of a missing payload column.
func (s *Store) checkColumns(row ports.Row, m ports.Match) error {
	for _, col := range columnOrder {
		if _, ok := m[col]; ok && s.missing[col] {
			return missingFilterColumn(col)
		}
	}
	for _, col := range columnOrder {
		if _, ok := row[col]; ok && s.missing[col] {
			return missingPayloadColumn(col)
		}
	}
	return nil
}

// List implements ports.TransactionTable
func (s *Store) List(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	out := append([]core.Transaction(nil), s.rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Insert implements ports.TransactionTable
func (s *Store) Insert(ctx context.Context, row ports.Row) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := s.checkColumns(row, nil); err != nil {
		return nil, err
	}
	tx := core.Transaction{ID: uuid.NewString(), CreatedAt: s.now()}
	if err := apply(&tx, row); err != nil {
		return nil, err
	}
	s.rows = append(s.rows, tx)
	s.inserts++
	return &tx, nil
}

// Update implements ports.TransactionTable
func (s *Store) Update(ctx context.Context, patch ports.Row, m ports.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := s.checkColumns(patch, m); err != nil {
		return err
	}
	for i := range s.rows {
		if matches(s.rows[i], m) {
			if err := apply(&s.rows[i], patch); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete implements ports.TransactionTable
func (s *Store) Delete(ctx context.Context, m ports.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := s.checkColumns(nil, m); err != nil {
		return err
	}
	kept := s.rows[:0]
	for _, tx := range s.rows {
		if !matches(tx, m) {
			kept = append(kept, tx)
		}
	}
	s.rows = kept
	return nil
}

// SignIn implements ports.Identity
func (s *Store) SignIn(_ context.Context, email, password string) (*ports.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok || u.password != password {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u), nil
}

// SignUp implements ports.Identity
func (s *Store) SignUp(_ context.Context, email, password, fullName string) error {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" || password == "" {
		return errors.New("Signup requires a valid password")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; ok {
		return ErrUserExists
	}
	s.users[key] = &user{id: uuid.NewString(), email: key, password: password, fullName: fullName}
	return nil
}

// Refresh implements ports.Identity
func (s *Store) Refresh(_ context.Context, refreshToken string) (*ports.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[refreshToken]
	if !ok {
		return nil, ErrInvalidRefresh
	}
	delete(s.refresh, refreshToken)
	u := s.userByID(id)
	if u == nil {
		return nil, ErrInvalidRefresh
	}
	return s.issue(u), nil
}

// CurrentUser implements ports.Identity
func (s *Store) CurrentUser(_ context.Context, accessToken string) (core.Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.access[accessToken]
	if !ok || !s.now().Before(g.expires) {
		return core.Viewer{}, ErrInvalidToken
	}
	u := s.userByID(g.userID)
	if u == nil {
		return core.Viewer{}, ErrInvalidToken
	}
	return u.viewer(), nil
}

// SignOut implements ports.Identity
func (s *Store) SignOut(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.access[accessToken]
	if !ok {
		return ErrInvalidToken
	}
	delete(s.access, accessToken)
	for tok, id := range s.refresh {
		if id == g.userID {
			delete(s.refresh, tok)
		}
	}
	return nil
}

func (s *Store) issue(u *user) *ports.Session {
	access, refresh := uuid.NewString(), uuid.NewString()
	expires := s.now().Add(s.tokenTTL)
	s.access[access] = grant{userID: u.id, expires: expires}
	s.refresh[refresh] = u.id
	return &ports.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		Viewer:       u.viewer(),
	}
}

func (s *Store) userByID(id string) *user {
	for _, u := range s.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (u *user) viewer() core.Viewer {
	return core.Viewer{ID: u.id, Email: u.email, FullName: u.fullName}
}

func matches(tx core.Transaction, m ports.Match) bool {
	for col, want := range m {
		var got string
		switch col {
		case ports.ColID:
			got = tx.ID
		case ports.ColUserID:
			got = tx.UserID
		case ports.ColUserEmail:
			got = tx.UserEmail
		case ports.ColCategory:
			got = tx.Category
		case ports.ColType:
			got = string(tx.Kind)
		case ports.ColDescription:
			got = tx.Description
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

func apply(tx *core.Transaction, row ports.Row) error {
	for col, v := range row {
		switch col {
		case ports.ColType:
			tx.Kind = core.Kind(fmt.Sprint(v))
		case ports.ColAmount:
			a, err := toAmount(v)
			if err != nil {
				return err
			}
			tx.Amount = a
		case ports.ColDescription:
			tx.Description = fmt.Sprint(v)
		case ports.ColCategory:
			tx.Category = fmt.Sprint(v)
		case ports.ColUserID:
			tx.UserID = fmt.Sprint(v)
		case ports.ColUserEmail:
			tx.UserEmail = fmt.Sprint(v)
		default:
			return missingPayloadColumn(col)
		}
	}
	return nil
}

func toAmount(v any) (core.Amount, error) {
	switch a := v.(type) {
	case core.Amount:
		return a, nil
	case decimal.Decimal:
		return core.NewAmount(a), nil
	case float64:
		return core.NewAmount(decimal.NewFromFloat(a)), nil
	case int:
		return core.NewAmount(decimal.NewFromInt(int64(a))), nil
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return core.Amount{}, fmt.Errorf("invalid input syntax for type numeric: %q", a)
		}
		return core.NewAmount(d), nil
	default:
		return core.Amount{}, fmt.Errorf("invalid amount %v", v)
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Kind = "INCOME"
	Expense Kind = "EXPENSE"
)

// DefaultCategory is substituted wherever a transaction has no category.
const DefaultCategory = "General"

type (
	Kind string

	// Transaction is one row of the shared ledger table. Optional columns are
	// empty strings when absent; some historical rows predate user_id.
	Transaction struct {
		ID          string    `json:"id"`
		CreatedAt   time.Time `json:"created_at"`
		Kind        Kind      `json:"type"`
		Amount      Amount    `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category,omitempty"`
		UserID      string    `json:"user_id,omitempty"`
		UserEmail   string    `json:"user_email,omitempty"`
	}

	// Viewer is the authenticated user looking at the ledger.
	Viewer struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"full_name,omitempty"`
	}

	// Draft is a validated create/update form submission.
	Draft struct {
		Kind        Kind
		Amount      Amount
		Description string
		Category    string
	}
)

var (
	ErrMissingDetails = errors.New("Please fill details")
	ErrInvalidAmount  = errors.New("Please enter a valid amount")
	ErrInvalidKind    = errors.New("invalid transaction type")
)

// Valid reports whether k is one of the two ledger kinds.
func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// ParseKind maps form input onto a Kind, defaulting to Expense when blank.
func ParseKind(s string) (Kind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Expense, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// NormalizedCategory returns the trimmed category, or DefaultCategory when blank.
func (t Transaction) NormalizedCategory() string {
	return NormalizeCategory(t.Category)
}

// NormalizeCategory trims c and substitutes DefaultCategory for blank values.
func NormalizeCategory(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultCategory
	}
	return c
}

// OwnedBy reports whether v may modify t. The owner id wins; the owner email is
// the fallback for rows written before user_id existed.
func (t Transaction) OwnedBy(v Viewer) bool {
	if t.UserID != "" && v.ID != "" && t.UserID == v.ID {
		return true
	}
	if t.UserEmail != "" && v.Email != "" && t.UserEmail == v.Email {
		return true
	}
	return false
}

// DisplayName is the full name, else the email local part, else "User".
func (v Viewer) DisplayName() string {
	if name := strings.TrimSpace(v.FullName); name != "" {
		return name
	}
	if local := EmailLocalPart(v.Email); local != "" {
		return local
	}
	return "User"
}

// EmailLocalPart returns everything before the first '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ParseDraft normalizes raw form values the same way for create and update.
func ParseDraft(kind, amount, description, category string) (Draft, error) {
	if strings.TrimSpace(amount) == "" || strings.TrimSpace(description) == "" {
		return Draft{}, ErrMissingDetails
	}
	k, err := ParseKind(kind)
	if err != nil {
		return Draft{}, err
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		Kind:        k,
		Amount:      a,
		Description: strings.TrimSpace(description),
		Category:    NormalizeCategory(category),
	}, nil
}

func (d Draft) Validate() error {
	if !d.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrMissingDetails
	}
	return nil
}

package services

import (
	"errors"
	"testing"
)

func TestLooksLikeMissingColumn(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		column string
		want   bool
	}{
		{"schema cache", errors.New("Could not find the 'user_id' column of 'transactions' in the schema cache"), "user_id", true},
		{"does not exist", errors.New("column transactions.category does not exist"), "category", true},
		{"other column", errors.New("column transactions.category does not exist"), "user_id", false},
		{"column name without hint", errors.New("user_id must not be null"), "user_id", false},
		{"unrelated", errors.New("permission denied"), "user_id", false},
		{"nil", nil, "user_id", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeMissingColumn(tt.err, tt.column); got != tt.want {
				t.Errorf("looksLikeMissingColumn() = %v, want %v", got, tt.want)
			}
		})
	}
}

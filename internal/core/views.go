package core

import (
	"sort"
	"strings"
	"time"
)

// Date range modes for the dashboard filter.
const (
	ThisMonth DateRange = "THIS_MONTH"
	LastMonth DateRange = "LAST_MONTH"
	Custom    DateRange = "CUSTOM"
)

// AllCategories is the neutral category filter value.
const AllCategories = "ALL"

// DateInputLayout is the layout of <input type="date"> values.
const DateInputLayout = "2006-01-02"

// DefaultCategoryOptions are always offered first in the category picker.
var DefaultCategoryOptions = []string{"Online", "Cash"}

type (
	DateRange string

	// Window is an inclusive time range. A zero Start or End is unbounded.
	Window struct {
		Start time.Time
		End   time.Time
	}

	// Filter is the dashboard filter state. Zero values are neutral except
	// Range, where the zero value means THIS_MONTH.
	Filter struct {
		Owner       string
		Category    string
		Search      string
		Range       DateRange
		CustomStart string
		CustomEnd   string
	}
)

// ParseDateRange maps a query value to a DateRange, defaulting to ThisMonth.
func ParseDateRange(s string) DateRange {
	switch r := DateRange(strings.ToUpper(strings.TrimSpace(s))); r {
	case LastMonth, Custom:
		return r
	default:
		return ThisMonth
	}
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

func endOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// ActiveWindow resolves the date filter against now. The boolean is false when
// no date filtering applies: a custom range with both bounds empty, or with
// either bound unparseable.
func (f Filter) ActiveWindow(now time.Time) (Window, bool) {
	loc := now.Location()
	y, m, d := now.Date()
	switch f.Range {
	case LastMonth:
		return Window{
			Start: time.Date(y, m-1, 1, 0, 0, 0, 0, loc),
			End:   endOfDay(y, m, 0, loc),
		}, true
	case Custom:
		start := strings.TrimSpace(f.CustomStart)
		end := strings.TrimSpace(f.CustomEnd)
		if start == "" && end == "" {
			return Window{}, false
		}
		var w Window
		if start != "" {
			t, err := time.ParseInLocation(DateInputLayout, start, loc)
			if err != nil {
				return Window{}, false
			}
			w.Start = t
		}
		if end != "" {
			t, err := time.ParseInLocation(DateInputLayout, end, loc)
			if err != nil {
				return Window{}, false
			}
			ey, em, ed := t.Date()
			w.End = endOfDay(ey, em, ed, loc)
		}
		return w, true
	default:
		return Window{
			Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
			End:   endOfDay(y, m, d, loc),
		}, true
	}
}

// MatchOwner is the contributor predicate.
func (f Filter) MatchOwner(t Transaction) bool {
	return f.Owner == "" || t.UserEmail == f.Owner
}

// MatchCategory is the category predicate; blank categories count as "General".
func (f Filter) MatchCategory(t Transaction) bool {
	if f.Category == "" || f.Category == AllCategories {
		return true
	}
	return t.NormalizedCategory() == f.Category
}

// MatchSearch is the case-insensitive free-text predicate over description,
// raw category and owner email.
func (f Filter) MatchSearch(t Transaction) bool {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	haystack := strings.TrimSpace(strings.ToLower(t.Description + " " + t.Category + " " + t.UserEmail))
	return strings.Contains(haystack, search)
}

// Visible returns the transactions passing every predicate, in input order.
func Visible(txs []Transaction, f Filter, now time.Time) []Transaction {
	window, dated := f.ActiveWindow(now)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !f.MatchOwner(t) || !f.MatchCategory(t) || !f.MatchSearch(t) {
			continue
		}
		if dated && !window.Contains(t.CreatedAt) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Contributors lists distinct non-empty owner emails, case-sensitive, sorted.
func Contributors(txs []Transaction) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range txs {
		if t.UserEmail == "" {
			continue
		}
		if _, ok := seen[t.UserEmail]; ok {
			continue
		}
		seen[t.UserEmail] = struct{}{}
		out = append(out, t.UserEmail)
	}
	sort.Strings(out)
	return out
}

// CategoryOptions returns the defaults followed by observed categories that no
// default already covers (case-insensitive), sorted.
func CategoryOptions(txs []Transaction) []string {
	covered := make(map[string]struct{})
	out := make([]string, 0, len(DefaultCategoryOptions))
	for _, c := range DefaultCategoryOptions {
		key := strings.ToLower(c)
		if _, ok := covered[key]; ok {
			continue
		}
		covered[key] = struct{}{}
		out = append(out, c)
	}

	observed := make(map[string]struct{})
	var extra []string
	for _, t := range txs {
		c := strings.TrimSpace(t.Category)
		if c == "" {
			continue
		}
		if _, ok := observed[c]; ok {
			continue
		}
		observed[c] = struct{}{}
		if _, ok := covered[strings.ToLower(c)]; ok {
			continue
		}
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append(out, extra...)
}

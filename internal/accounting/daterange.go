package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/gesticom/gesticom/internal/shared"
)

// DateLayout is the wire format of report date bounds.
const DateLayout = "2006-01-02"

// DateRange bounds a report by whole days. Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// NewDateRange parses optional YYYY-MM-DD bounds.
func NewDateRange(from, to string) (DateRange, error) {
	var rng DateRange
	if v := strings.TrimSpace(from); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: dateDebut %q", shared.ErrInvalidInput, v)
		}
		rng.From = &t
	}
	if v := strings.TrimSpace(to); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: dateFin %q", shared.ErrInvalidInput, v)
		}
		rng.To = &t
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return DateRange{}, fmt.Errorf("%w: dateFin before dateDebut", shared.ErrInvalidInput)
	}
	return rng, nil
}

// Start returns the first instant of the range, if bounded.
func (r DateRange) Start() *time.Time {
	if r.From == nil {
		return nil
	}
	t := startOfDay(*r.From)
	return &t
}

// End returns the first instant after the range, if bounded.
func (r DateRange) End() *time.Time {
	if r.To == nil {
		return nil
	}
	t := startOfDay(*r.To).AddDate(0, 0, 1)
	return &t
}

// Bounds returns the inclusive calendar-day bounds as YYYY-MM-DD strings,
// nil when open. Entry dates are DATE columns, so binding plain days keeps
// the comparison independent of the session time zone.
func (r DateRange) Bounds() (from, to *string) {
	if r.From != nil {
		v := r.From.Format(DateLayout)
		from = &v
	}
	if r.To != nil {
		v := r.To.Format(DateLayout)
		to = &v
	}
	return from, to
}

// Contains reports whether t falls within [From 00:00, To 23:59:59.999…].
func (r DateRange) Contains(t time.Time) bool {
	if start := r.Start(); start != nil && t.Before(*start) {
		return false
	}
	if end := r.End(); end != nil && !t.Before(*end) {
		return false
	}
	return true
}

// Key identifies the range in flight and cache keys.
func (r DateRange) Key() string {
	var b strings.Builder
	if r.From != nil {
		b.WriteString(r.From.Format(DateLayout))
	}
	b.WriteString("..")
	if r.To != nil {
		b.WriteString(r.To.Format(DateLayout))
	}
	return b.String()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDocumentDate parses an optional YYYY-MM-DD document date, defaulting
// to the day of now.
func ParseDocumentDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", shared.ErrInvalidInput, raw)
	}
	return t, nil
}

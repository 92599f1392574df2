package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar date. The time component is normalized to
	// midnight UTC so records sort and compare by day.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is the single ledger entity. Records are immutable once
	// created: there is no update or delete path.
	Expense struct {
		ID             string
		Amount         Money
		Category       string
		Description    string
		Date           Date
		IdempotencyKey string
		CreatedAt      time.Time
	}

	// ListFilter narrows and orders the expense listing.
	ListFilter struct {
		Category      string // exact match; empty means all categories
		DateAscending bool   // default ordering is newest date first
	}
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDate           = errors.New("invalid date")
	ErrEmptyCategory         = errors.New("empty category")
	ErrEmptyDescription      = errors.New("empty description")
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	ErrDescriptionTooLong    = errors.New("description too long (max 200 characters)")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a plain calendar date (2006-01-02) or an RFC 3339
// timestamp, normalizing either to midnight UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(e.IdempotencyKey) == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}

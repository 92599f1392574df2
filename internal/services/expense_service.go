// Package services orchestrates expense operations between the SQLite
// store and the optional AMQP event pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/storage"
)

// ExpenseStore is the persistence port the service drives.
type ExpenseStore interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*core.Expense, error)
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	List(ctx context.Context, f core.ListFilter) ([]core.Expense, error)
}

// EventPublisher emits expense lifecycle events. A nil publisher disables
// publishing without changing service behavior.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}

// CreateExpenseInput carries the client's create request. Amount is the
// raw decimal string so conversion to cents happens exactly once, here.
type CreateExpenseInput struct {
	Amount         string
	Category       string
	Description    string
	Date           core.Date
	IdempotencyKey string
}

type ExpenseService struct {
	store  ExpenseStore
	events EventPublisher
}

func NewExpenseService(store ExpenseStore, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:  store,
		events: events,
	}
}

// CreateExpense creates an expense at most once per idempotency key.
//
// The flow is lookup, validate, insert. If a concurrent request with the
// same key wins the insert race, the storage layer reports
// ErrDuplicateKey and the winner's record is returned instead of an
// error. The created flag distinguishes a fresh insert from an
// idempotent replay.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, bool, error) {
	if in.IdempotencyKey == "" {
		return core.Expense{}, false, core.ErrMissingIdempotencyKey
	}

	existing, err := s.store.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if existing != nil {
		slog.InfoContext(ctx, "Idempotent replay, returning existing expense",
			"id", existing.ID, "idempotency_key", in.IdempotencyKey)
		return *existing, false, nil
	}

	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.Expense{}, false, err
	}

	e := core.Expense{
		Amount:         core.Money{Cents: cents},
		Category:       in.Category,
		Description:    in.Description,
		Date:           in.Date,
		IdempotencyKey: in.IdempotencyKey,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, false, err
	}

	stored, err := s.store.Insert(ctx, e)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost the race against a concurrent identical request:
			// the constraint held, so return the winner's record.
			winner, lookupErr := s.store.GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if lookupErr != nil {
				return core.Expense{}, false, fmt.Errorf("lookup after duplicate insert: %w", lookupErr)
			}
			if winner == nil {
				return core.Expense{}, false, fmt.Errorf("duplicate key reported but no record found for %q", in.IdempotencyKey)
			}
			slog.InfoContext(ctx, "Concurrent duplicate insert resolved",
				"id", winner.ID, "idempotency_key", in.IdempotencyKey)
			return *winner, false, nil
		}
		return core.Expense{}, false, fmt.Errorf("insert expense: %w", err)
	}

	s.publishCreated(ctx, stored)

	return stored, true, nil
}

// ListExpenses returns all expenses matching the filter.
func (s *ExpenseService) ListExpenses(ctx context.Context, f core.ListFilter) ([]core.Expense, error) {
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

func (s *ExpenseService) publishCreated(ctx context.Context, e core.Expense) {
	if s.events == nil {
		return
	}
	// Publishing is best-effort: the expense is already durable locally.
	if err := s.events.PublishExpenseCreated(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense created event",
			"id", e.ID, "error", err)
	}
}

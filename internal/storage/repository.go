// Package storage persists expenses in SQLite. The unique index on
// idempotency_key is the atomic primitive the idempotent-create contract
// rests on: a racing duplicate insert fails at the storage layer and is
// surfaced as ErrDuplicateKey so callers can treat it as "already exists".
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateKey reports an insert that violated the idempotency-key
// uniqueness constraint. It is the only storage failure callers are
// expected to branch on.
var ErrDuplicateKey = errors.New("duplicate idempotency key")

const expenseDateFormat = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert persists a new expense. The id and creation timestamp are
// assigned here if the caller left them zero; the stored record is
// returned. A second insert with the same idempotency key returns
// ErrDuplicateKey and leaves the existing record untouched.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, amount_cents, category, description, expense_date, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Amount.Cents, e.Category, e.Description,
		e.Date.Format(expenseDateFormat), e.IdempotencyKey, e.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Expense{}, fmt.Errorf("insert expense %s: %w", e.IdempotencyKey, ErrDuplicateKey)
		}
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"idempotency_key", e.IdempotencyKey)

	return e, nil
}

// GetByIdempotencyKey returns the expense stored under key, or nil when
// no record exists.
func (r *SQLiteRepository) GetByIdempotencyKey(ctx context.Context, key string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, category, description, expense_date, idempotency_key, created_at
		 FROM expenses WHERE idempotency_key = ?`, key)

	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get expense by idempotency key: %w", err)
	}
	return &e, nil
}

// List returns all expenses matching the filter, ordered by date
// (descending unless ascending was requested) with newest-created first
// among records sharing a date.
func (r *SQLiteRepository) List(ctx context.Context, f core.ListFilter) ([]core.Expense, error) {
	query := `SELECT id, amount_cents, category, description, expense_date, idempotency_key, created_at
		 FROM expenses`
	var args []any
	if f.Category != "" {
		query += ` WHERE category = ?`
		args = append(args, f.Category)
	}
	dir := "DESC"
	if f.DateAscending {
		dir = "ASC"
	}
	query += ` ORDER BY expense_date ` + dir + `, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		dateStr   string
		createdNs int64
	)
	if err := row.Scan(&e.ID, &e.Amount.Cents, &e.Category, &e.Description,
		&dateStr, &e.IdempotencyKey, &createdNs); err != nil {
		return core.Expense{}, err
	}
	t, err := time.Parse(expenseDateFormat, dateStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	e.Date = core.Date{Time: t}
	e.CreatedAt = time.Unix(0, createdNs).UTC()
	return e, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure, as opposed to any other database error.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

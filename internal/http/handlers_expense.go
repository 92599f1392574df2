package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/services"
)

// createExpenseRequest is the JSON create body. Amount is decoded as
// json.Number so the decimal survives verbatim until cents conversion.
type createExpenseRequest struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	case http.MethodGet:
		s.handleListExpenses(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		writeError(w, http.StatusBadRequest, "Idempotency-Key header is required")
		return
	}

	var req createExpenseRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		slog.ErrorContext(r.Context(), "Decode create request failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
		return
	}

	in := services.CreateExpenseInput{
		Amount:         req.Amount.String(),
		Category:       sanitizeInput(req.Category),
		Description:    sanitizeInput(req.Description),
		Date:           date,
		IdempotencyKey: idempotencyKey,
	}

	expense, created, err := s.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		status, msg := classifyCreateError(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Create expense failed",
				"error", err, "idempotency_key", idempotencyKey)
		}
		writeError(w, status, msg)
		return
	}

	status := http.StatusCreated
	if !created {
		// Idempotent replay: the record already existed.
		status = http.StatusOK
	}
	writeJSON(w, status, toExpenseJSON(expense))
}

// classifyCreateError maps validation failures to 400 and everything
// else to 500.
func classifyCreateError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be greater than 0"
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusBadRequest, "Please provide a valid date"
	case errors.Is(err, core.ErrEmptyCategory):
		return http.StatusBadRequest, "Please provide a category"
	case errors.Is(err, core.ErrEmptyDescription):
		return http.StatusBadRequest, "Please provide a description"
	case errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrMissingIdempotencyKey):
		return http.StatusBadRequest, "Idempotency-Key header is required"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ListFilter{
		Category:      sanitizeInput(q.Get("category")),
		DateAscending: q.Get("sort_date") == "asc",
	}

	items, err := s.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err, "category", filter.Category)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]expenseJSON, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

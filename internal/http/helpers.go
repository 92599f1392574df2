package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
)

// expenseJSON is the wire shape of an expense record.
type expenseJSON struct {
	ID             string    `json:"id"`
	AmountCents    int64     `json:"amountCents"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	Date           time.Time `json:"date"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:             e.ID,
		AmountCents:    e.Amount.Cents,
		Category:       e.Category,
		Description:    e.Description,
		Date:           e.Date.Time,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientIP extracts the caller's address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// Package export appends consumed expense events to a CSV ledger file.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
)

var header = []string{"id", "date", "category", "description", "amount_cents", "amount", "created_at"}

// CSVExporter appends one row per expense to a CSV file. Safe for use
// from a single consumer goroutine; the mutex guards ad-hoc callers.
type CSVExporter struct {
	mu   sync.Mutex
	path string
}

func NewCSVExporter(path string) (*CSVExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &CSVExporter{path: path}, nil
}

// Append writes the expense event as a CSV row, creating the file with a
// header row on first use. The file is opened per append so a crash
// never loses previously flushed rows.
func (x *CSVExporter) Append(msg *amqp.ExpenseCreatedMessage) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	writeHeader := false
	if info, err := os.Stat(x.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	f, err := os.OpenFile(x.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := []string{
		msg.ID,
		msg.Date,
		msg.Category,
		msg.Description,
		fmt.Sprintf("%d", msg.AmountCents),
		core.Money{Cents: msg.AmountCents}.String(),
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}

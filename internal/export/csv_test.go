package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/amqp"
)

func testMessage(id string) *amqp.ExpenseCreatedMessage {
	return &amqp.ExpenseCreatedMessage{
		ID:          id,
		AmountCents: 4250,
		Category:    "Food",
		Description: "Lunch",
		Date:        "2024-05-01",
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Timestamp:   time.Now(),
	}
}

func TestCSVExporterAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	x, err := NewCSVExporter(path)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if err := x.Append(testMessage("e1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := x.Append(testMessage("e2")); err != nil {
		t.Fatalf("append second: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" {
		t.Fatalf("missing header row: %v", rows[0])
	}
	if rows[1][0] != "e1" || rows[2][0] != "e2" {
		t.Fatalf("rows out of order: %v %v", rows[1], rows[2])
	}
	if rows[1][4] != "4250" || rows[1][5] != "$42.50" {
		t.Fatalf("amount columns wrong: %v", rows[1])
	}
}

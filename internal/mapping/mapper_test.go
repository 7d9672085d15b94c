package mapping

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCleanAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		nil_ bool
	}{
		{"₹1,234.50", 1234.50, false},
		{"1234.50", 1234.50, false},
		{"$99", 99, false},
		{"Rs 150", 150, false},
		{"Rs. 150", 150, false},
		{"INR 2,000", 2000, false},
		{"(100)", -100, false},
		{"-42.5", -42.5, false},
		{"", 0, true},
		{"n/a", 0, true},
		{"free", 0, true},
	}

	for _, tc := range cases {
		got := CleanAmount(tc.in)
		if tc.nil_ {
			if got != nil {
				t.Fatalf("CleanAmount(%q): expected nil, got %v", tc.in, *got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("CleanAmount(%q): expected %v, got nil", tc.in, tc.want)
		}
		if *got != tc.want {
			t.Fatalf("CleanAmount(%q): expected %v, got %v", tc.in, tc.want, *got)
		}
	}
}

func TestCleanTimestamp(t *testing.T) {
	ts := CleanTimestamp("2024-01-15")
	if ts == nil {
		t.Fatal("expected 2024-01-15 to parse")
	}
	if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
		t.Fatalf("unexpected parse result: %v", ts)
	}

	if CleanTimestamp("not a date") != nil {
		t.Fatal("expected unparseable date to yield nil")
	}
	if CleanTimestamp("") != nil {
		t.Fatal("expected empty cell to yield nil")
	}
}

func TestAssignRolesPrecedence(t *testing.T) {
	headers := []string{"Invoice No", "Item Description", "Amount", "Invoice Date", "Notes"}
	columns := AssignRoles(headers)

	if got := columns.ColumnFor(RoleTimestamp); got != 3 {
		t.Fatalf("expected timestamp column 3, got %d", got)
	}
	if got := columns.ColumnFor(RoleAmount); got != 2 {
		t.Fatalf("expected amount column 2, got %d", got)
	}
	if got := columns.ColumnFor(RoleEntity); got != 1 {
		t.Fatalf("expected entity column 1, got %d", got)
	}
	if got := columns.ColumnFor(RoleReference); got != 0 {
		t.Fatalf("expected reference column 0, got %d", got)
	}
	if len(columns.Residual) != 1 || columns.Residual[0] != 4 {
		t.Fatalf("expected residual column [4], got %v", columns.Residual)
	}
}

func TestAssignRolesClaimsEachColumnOnce(t *testing.T) {
	// The date column is claimed by the timestamp role first and must not be
	// re-claimed when the amount role scans.
	headers := []string{"Date", "Total Amount"}
	columns := AssignRoles(headers)

	if got := columns.ColumnFor(RoleTimestamp); got != 0 {
		t.Fatalf("expected timestamp column 0, got %d", got)
	}
	if got := columns.ColumnFor(RoleAmount); got != 1 {
		t.Fatalf("expected amount column 1, got %d", got)
	}
}

func TestMapRejectsRowsWithoutTimestampOrAmount(t *testing.T) {
	mapper := NewMapper()
	headers := []string{"Date", "Item", "Amount"}
	rows := [][]string{
		{"2024-01-15", "Coffee", "250"},
		{"garbage", "Mystery", "not-a-number"},
	}

	result := mapper.Map(headers, rows, uuid.New(), "test")

	if len(result.ValidEvents) != 1 {
		t.Fatalf("expected 1 valid event, got %d", len(result.ValidEvents))
	}
	if len(result.FailedRows) != 1 {
		t.Fatalf("expected 1 failed row, got %d", len(result.FailedRows))
	}
	if result.FailedRows[0].RowNumber != 2 {
		t.Fatalf("expected failed row number 2, got %d", result.FailedRows[0].RowNumber)
	}
	if result.FailedRows[0].Reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestMapDefaultsTimestampToIngestionTime(t *testing.T) {
	ingestedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mapper := NewMapperAt(func() time.Time { return ingestedAt })

	headers := []string{"Date", "Item", "Amount"}
	rows := [][]string{{"", "Tea", "150"}}

	result := mapper.Map(headers, rows, uuid.New(), "test")
	if len(result.ValidEvents) != 1 {
		t.Fatalf("expected 1 valid event, got %d", len(result.ValidEvents))
	}

	event := result.ValidEvents[0]
	if !event.Timestamp.Equal(ingestedAt) {
		t.Fatalf("expected ingestion time default, got %v", event.Timestamp)
	}
	if event.Amount == nil || *event.Amount != 150 {
		t.Fatalf("expected amount 150, got %v", event.Amount)
	}
}

func TestMapCountsDuplicates(t *testing.T) {
	mapper := NewMapper()
	headers := []string{"Date", "Item", "Amount"}
	rows := [][]string{
		{"2024-01-15", "Coffee", "250"},
		{"2024-01-15", "Coffee", "250"},
		{"2024-01-16", "Tea", "150"},
	}

	result := mapper.Map(headers, rows, uuid.New(), "test")

	if result.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", result.Duplicates)
	}
	if len(result.ValidEvents) != 2 {
		t.Fatalf("expected 2 valid events, got %d", len(result.ValidEvents))
	}
}

func TestMapFingerprintStableAcrossColumnOrder(t *testing.T) {
	mapper := NewMapper()
	tenant := uuid.New()
	rows := [][]string{{"2024-01-15", "Coffee", "250"}}

	a := mapper.Map([]string{"Date", "Item", "Amount"}, rows, tenant, "test")
	b := mapper.Map([]string{"Amount", "Date", "Item"}, rows, tenant, "test")
	c := mapper.Map([]string{"Date", "Item", "Qty"}, rows, tenant, "test")

	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("expected fingerprint to ignore column order: %s vs %s", a.Fingerprint, b.Fingerprint)
	}
	if a.Fingerprint == c.Fingerprint {
		t.Fatal("expected different column sets to produce different fingerprints")
	}
}

func TestMapKeepsResidualColumnsInRichData(t *testing.T) {
	mapper := NewMapper()
	headers := []string{"Date", "Item", "Amount", "Warehouse"}
	rows := [][]string{{"2024-01-15", "Coffee", "250", "North"}}

	result := mapper.Map(headers, rows, uuid.New(), "test")
	if len(result.ValidEvents) != 1 {
		t.Fatalf("expected 1 valid event, got %d", len(result.ValidEvents))
	}

	event := result.ValidEvents[0]
	if event.RichData["warehouse"] != "North" {
		t.Fatalf("expected residual warehouse column in rich data, got %v", event.RichData)
	}
	if event.EntityName == nil || *event.EntityName != "Coffee" {
		t.Fatalf("expected entity Coffee, got %v", event.EntityName)
	}
}

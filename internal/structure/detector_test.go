package structure

import (
	"context"
	"errors"
	"testing"
)

func TestFindHeaderRowGoldenPath(t *testing.T) {
	grid := [][]string{
		{"Date", "Item", "Qty", "Amount"},
		{"2024-01-15", "Coffee", "5", "250"},
	}

	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), grid, nil); got != 0 {
		t.Fatalf("expected header row 0, got %d", got)
	}
}

func TestFindHeaderRowGoldenPathSecondRow(t *testing.T) {
	grid := [][]string{
		{"Acme Traders Pvt Ltd", "", ""},
		{"Date", "Invoice", "Amount"},
		{"2024-01-15", "INV-1", "250"},
	}

	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), grid, nil); got != 1 {
		t.Fatalf("expected header row 1, got %d", got)
	}
}

func TestFindHeaderRowDeepScanAfterJunk(t *testing.T) {
	var grid [][]string
	for i := 0; i < 50; i++ {
		grid = append(grid, []string{"note", "", "x"})
	}
	grid = append(grid, []string{"Date", "Invoice", "Amount", "Total"})
	grid = append(grid, []string{"2024-01-15", "INV-9", "120.50", "120.50"})

	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), grid, nil); got != 50 {
		t.Fatalf("expected header row 50, got %d", got)
	}
}

func TestFindHeaderRowPrefersTransactionalHeader(t *testing.T) {
	// A summary block with a plain list header appears above the real
	// transactional detail block; the transactional bonus must win.
	grid := [][]string{
		{"Monthly Purchases Report", ""},
		{"", ""},
		{"Item", "Name", "Qty"},
		{"totals below", ""},
		{"Date", "Amount", "Invoice", "Total"},
		{"2024-01-15", "250", "INV-1", "250"},
	}

	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), grid, nil); got != 4 {
		t.Fatalf("expected transactional header row 4, got %d", got)
	}
}

func TestFindHeaderRowEmptyGrid(t *testing.T) {
	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty grid, got %d", got)
	}
}

func TestFindHeaderRowNoCandidatesDefaultsToZero(t *testing.T) {
	grid := [][]string{
		{"alpha", "beta"},
		{"gamma", "delta"},
		{"epsilon", "zeta"},
	}

	detector := NewDetector()
	if got := detector.FindHeaderRow(context.Background(), grid, nil); got != 0 {
		t.Fatalf("expected safe default 0, got %d", got)
	}
}

type fakeJudge struct {
	pick int
	err  error

	calls     int
	gotFirst  []string
	gotSecond []string
}

func (j *fakeJudge) PickHeaderRow(_ context.Context, first, second []string) (int, error) {
	j.calls++
	j.gotFirst = first
	j.gotSecond = second
	return j.pick, j.err
}

func TestFindHeaderRowAmbiguityUsesJudge(t *testing.T) {
	// Both candidate rows score within the ambiguity delta.
	grid := [][]string{
		{"prelude", ""},
		{"", ""},
		{"Date", "Amount", "Qty"},
		{"notes", ""},
		{"Date", "Item", "Amount"},
		{"2024-01-15", "Coffee", "250"},
	}

	detector := NewDetector()
	detector.GoldenScore = 10 // force the deep scan

	judge := &fakeJudge{pick: 2}
	got := detector.FindHeaderRow(context.Background(), grid, judge)
	if judge.calls != 1 {
		t.Fatalf("expected judge to be consulted once, got %d calls", judge.calls)
	}

	_, candidates := detector.FindHeaderRowWithCandidates(context.Background(), grid, nil)
	if len(candidates) < 2 {
		t.Fatalf("expected at least two candidates, got %d", len(candidates))
	}
	if got != candidates[1].Index {
		t.Fatalf("expected judge's pick %d, got %d", candidates[1].Index, got)
	}
}

func TestFindHeaderRowJudgeDeclines(t *testing.T) {
	grid := [][]string{
		{"prelude", ""},
		{"", ""},
		{"Date", "Amount", "Qty"},
		{"notes", ""},
		{"Date", "Item", "Amount"},
		{"2024-01-15", "Coffee", "250"},
	}

	detector := NewDetector()
	detector.GoldenScore = 10

	expected, _ := detector.FindHeaderRowWithCandidates(context.Background(), grid, nil)

	judge := &fakeJudge{err: ErrNoVerdict}
	if got := detector.FindHeaderRow(context.Background(), grid, judge); got != expected {
		t.Fatalf("expected top candidate %d when judge declines, got %d", expected, got)
	}

	judge = &fakeJudge{err: errors.New("timeout")}
	if got := detector.FindHeaderRow(context.Background(), grid, judge); got != expected {
		t.Fatalf("expected top candidate %d on judge error, got %d", expected, got)
	}
}

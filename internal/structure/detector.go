// Package structure locates the true header row inside messy tabular exports.
// Clean files resolve on a cheap check of the first rows; everything else goes
// through a bounded scoring scan that favors transactional-looking headers.
package structure

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrNoVerdict is returned by a HeaderJudge that declines to pick.
var ErrNoVerdict = errors.New("judge declined to pick a header row")

// HeaderJudge breaks ties between two candidate header rows. Implementations
// may time out or decline; the detector then keeps its highest-scoring pick.
type HeaderJudge interface {
	PickHeaderRow(ctx context.Context, first, second []string) (int, error)
}

// Detector scores rows against a vocabulary of known column-header terms.
type Detector struct {
	// GoldenScore short-circuits the scan when row 0 or 1 reaches it.
	GoldenScore int
	// MinScore is the floor for a row to be considered a candidate at all.
	MinScore int
	// AmbiguityDelta is the max score gap at which two candidates are
	// considered a tie worth escalating to the judge.
	AmbiguityDelta int
	// MaxScan bounds the deep scan.
	MaxScan int
}

// NewDetector returns a detector with the default thresholds.
func NewDetector() *Detector {
	return &Detector{
		GoldenScore:    3,
		MinScore:       2,
		AmbiguityDelta: 1,
		MaxScan:        100,
	}
}

// Candidate is a scored header-row option, exposed for upload previews.
type Candidate struct {
	Index  int      `json:"index"`
	Score  int      `json:"score"`
	Values []string `json:"values"`
}

var headerVocabulary = map[string]bool{
	"date": true, "day": true, "month": true, "year": true, "time": true,
	"item": true, "items": true, "description": true, "desc": true,
	"product": true, "sku": true, "name": true, "particulars": true,
	"qty": true, "quantity": true, "units": true, "unit": true,
	"amount": true, "amt": true, "total": true, "price": true, "rate": true,
	"value": true, "invoice": true, "bill": true, "receipt": true,
	"ref": true, "reference": true, "voucher": true,
	"customer": true, "vendor": true, "supplier": true, "party": true,
	"account": true, "gst": true, "tax": true, "balance": true,
	"debit": true, "credit": true, "status": true, "category": true,
}

// transactionalVocabulary marks terms that only appear on detail rows of
// ledgers and invoices, never on summary or list headers.
var transactionalVocabulary = map[string]bool{
	"date": true, "amount": true, "amt": true, "invoice": true,
	"total": true, "bill": true, "debit": true, "credit": true,
	"balance": true, "voucher": true,
}

const (
	transactionalBonus = 2
	dataBelowBonus     = 1
)

// FindHeaderRow returns the index of the most plausible header row. It never
// fails: grids with no recognizable header resolve to row 0 so the file is
// still attempted with positional columns.
func (d *Detector) FindHeaderRow(ctx context.Context, grid [][]string, judge HeaderJudge) int {
	index, _ := d.FindHeaderRowWithCandidates(ctx, grid, judge)
	return index
}

// FindHeaderRowWithCandidates also returns the scored candidates considered,
// for preview surfaces.
func (d *Detector) FindHeaderRowWithCandidates(ctx context.Context, grid [][]string, judge HeaderJudge) (int, []Candidate) {
	if len(grid) == 0 {
		return 0, nil
	}

	// Golden path: clean exports have the header on the first or second row.
	// This check is constant cost regardless of file size.
	for idx := 0; idx < 2 && idx < len(grid); idx++ {
		if d.keywordScore(grid[idx]) >= d.GoldenScore {
			return idx, []Candidate{{Index: idx, Score: d.keywordScore(grid[idx]), Values: grid[idx]}}
		}
	}

	limit := d.MaxScan
	if limit <= 0 || limit > len(grid) {
		limit = len(grid)
	}

	var candidates []Candidate
	for idx := 0; idx < limit; idx++ {
		score := d.scoreRow(grid, idx)
		if score >= d.MinScore {
			candidates = append(candidates, Candidate{Index: idx, Score: score, Values: grid[idx]})
		}
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Index < candidates[j].Index
	})

	top := candidates[0]
	if len(candidates) > 1 && judge != nil {
		second := candidates[1]
		if top.Score-second.Score <= d.AmbiguityDelta {
			if pick, err := judge.PickHeaderRow(ctx, top.Values, second.Values); err == nil {
				if pick == 2 {
					return second.Index, candidates
				}
				return top.Index, candidates
			}
		}
	}

	return top.Index, candidates
}

// scoreRow combines the keyword score with the transactional bonus and the
// data-below bonus used only during the deep scan.
func (d *Detector) scoreRow(grid [][]string, idx int) int {
	row := grid[idx]
	score := d.keywordScore(row)
	if score == 0 {
		return 0
	}

	if d.transactionalMatches(row) >= 2 {
		score += transactionalBonus
	}

	if idx+1 < len(grid) && rowHasNumericCell(grid[idx+1]) {
		score += dataBelowBonus
	}

	return score
}

func (d *Detector) keywordScore(row []string) int {
	score := 0
	for _, cell := range row {
		if cellMatches(cell, headerVocabulary) {
			score++
		}
	}
	return score
}

func (d *Detector) transactionalMatches(row []string) int {
	count := 0
	for _, cell := range row {
		if cellMatches(cell, transactionalVocabulary) {
			count++
		}
	}
	return count
}

// cellMatches tokenizes a cell and checks each token against the vocabulary,
// so "Invoice Date" matches both invoice and date but a paragraph of prose
// containing "the total" still only counts once per cell.
func cellMatches(cell string, vocabulary map[string]bool) bool {
	cell = strings.ToLower(strings.TrimSpace(cell))
	if cell == "" {
		return false
	}
	for _, token := range strings.FieldsFunc(cell, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if vocabulary[token] {
			return true
		}
	}
	return false
}

func rowHasNumericCell(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return true
		}
	}
	return false
}

// Package mapping turns a header row plus data rows into typed UniversalEvents.
// Column roles are assigned by keyword match over normalized column names; cell
// cleaning is permissive and per-row failures are reported, never raised.
package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/domain"
)

// Role identifies the semantic meaning of a mapped column.
type Role string

const (
	RoleTimestamp Role = "timestamp"
	RoleAmount    Role = "amount"
	RoleEntity    Role = "entity"
	RoleReference Role = "reference"
)

// rolePrecedence fixes the claim order; each role claims the first column not
// already taken by an earlier role.
var rolePrecedence = []Role{RoleTimestamp, RoleAmount, RoleEntity, RoleReference}

var roleKeywords = map[Role][]string{
	RoleTimestamp: {"date", "day", "time", "timestamp", "posted", "created", "month", "period"},
	RoleAmount:    {"amount", "amt", "total", "value", "price", "debit", "credit", "net", "gross"},
	RoleEntity:    {"item", "product", "description", "particulars", "name", "party", "customer", "vendor", "supplier", "merchant", "payee", "entity"},
	RoleReference: {"invoice", "ref", "reference", "bill", "receipt", "voucher", "order", "txn", "transaction"},
}

// ColumnRoleMap records which column serves each role plus the residual
// columns kept verbatim for audit. Built once per file, then immutable.
type ColumnRoleMap struct {
	Roles    map[Role]int `json:"roles"`
	Residual []int        `json:"residual"`
	Headers  []string     `json:"headers"`
}

// ColumnFor returns the index claimed by a role, or -1.
func (m ColumnRoleMap) ColumnFor(role Role) int {
	if idx, ok := m.Roles[role]; ok {
		return idx
	}
	return -1
}

// Result aggregates a full mapping pass over one file.
type Result struct {
	ValidEvents []*domain.UniversalEvent
	FailedRows  []domain.FailedRow
	Columns     ColumnRoleMap
	Fingerprint string
	Duplicates  int
}

// Mapper converts rows under a detected header into events.
type Mapper struct {
	now func() time.Time
}

// NewMapper returns a mapper using wall-clock ingestion time for rows that
// carry an amount but no parseable date.
func NewMapper() *Mapper {
	return &Mapper{now: func() time.Time { return time.Now().UTC() }}
}

// NewMapperAt pins ingestion time, for tests.
func NewMapperAt(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// NormalizeColumn folds a raw header cell to the comparable form used both by
// role matching and the schema fingerprint.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, sep := range []string{" ", "-", ".", "/"} {
		name = strings.ReplaceAll(name, sep, "_")
	}
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// AssignRoles maps semantic roles onto header columns in fixed precedence.
func AssignRoles(headers []string) ColumnRoleMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeColumn(h)
	}

	claimed := make(map[int]bool)
	roles := make(map[Role]int)

	for _, role := range rolePrecedence {
		for idx, name := range normalized {
			if claimed[idx] || name == "" {
				continue
			}
			if columnMatchesRole(name, roleKeywords[role]) {
				roles[role] = idx
				claimed[idx] = true
				break
			}
		}
	}

	var residual []int
	for idx := range headers {
		if !claimed[idx] {
			residual = append(residual, idx)
		}
	}

	return ColumnRoleMap{Roles: roles, Residual: residual, Headers: normalized}
}

func columnMatchesRole(name string, keywords []string) bool {
	for _, token := range strings.Split(name, "_") {
		for _, kw := range keywords {
			if token == kw {
				return true
			}
		}
	}
	return false
}

// Map processes every data row under the header. One bad row never aborts the
// batch; rows failing the minimum viability bar (no timestamp and no amount)
// land in FailedRows with a reason.
func (m *Mapper) Map(headers []string, rows [][]string, tenantID uuid.UUID, sourceSystem string) Result {
	columns := AssignRoles(headers)
	fingerprint := domain.SchemaFingerprint(columns.Headers)

	result := Result{
		Columns:     columns,
		Fingerprint: fingerprint,
		FailedRows:  []domain.FailedRow{},
	}

	seen := make(map[string]bool, len(rows))

	for rowIdx, row := range rows {
		if rowIsEmpty(row) {
			result.FailedRows = append(result.FailedRows, domain.FailedRow{
				RowNumber: rowIdx + 1,
				Reason:    "empty row",
			})
			continue
		}

		hash := domain.RowContentHash(tenantID.String(), fingerprint, row)
		if seen[hash] {
			result.Duplicates++
			continue
		}
		seen[hash] = true

		event, reason := m.mapRow(columns, headers, row, tenantID, sourceSystem, fingerprint)
		if event == nil {
			result.FailedRows = append(result.FailedRows, domain.FailedRow{
				RowNumber: rowIdx + 1,
				Reason:    reason,
				Raw:       row,
			})
			continue
		}
		result.ValidEvents = append(result.ValidEvents, event)
	}

	return result
}

// mapRow converts a single row. The recover guard keeps a pathological cell
// from taking down the rest of the file.
func (m *Mapper) mapRow(columns ColumnRoleMap, headers []string, row []string, tenantID uuid.UUID, sourceSystem, fingerprint string) (event *domain.UniversalEvent, reason string) {
	defer func() {
		if r := recover(); r != nil {
			event = nil
			reason = fmt.Sprintf("row processing panic: %v", r)
		}
	}()

	ts := cellAt(row, columns.ColumnFor(RoleTimestamp))
	amountRaw := cellAt(row, columns.ColumnFor(RoleAmount))

	parsedTime := CleanTimestamp(ts)
	amount := CleanAmount(amountRaw)

	if parsedTime == nil && amount == nil {
		return nil, "no parseable timestamp or amount"
	}

	event = domain.NewUniversalEvent(tenantID, sourceSystem, fingerprint)
	if parsedTime != nil {
		event.Timestamp = *parsedTime
	} else {
		event.Timestamp = m.now()
	}
	event.Amount = amount

	if name := strings.TrimSpace(cellAt(row, columns.ColumnFor(RoleEntity))); name != "" {
		event.EntityName = &name
	}
	if ref := strings.TrimSpace(cellAt(row, columns.ColumnFor(RoleReference))); ref != "" {
		event.ReferenceID = &ref
	}

	// Residual columns plus the mapped originals are kept verbatim so the
	// row can be replayed or audited later.
	for idx, header := range headers {
		if idx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[idx])
		if value == "" {
			continue
		}
		key := NormalizeColumn(header)
		if key == "" {
			key = fmt.Sprintf("column_%d", idx+1)
		}
		event.RichData[key] = value
	}

	return event, ""
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// currencyPrefixes are stripped from the front of amount cells, longest first.
var currencyPrefixes = []string{"rs.", "rs", "inr", "usd", "eur", "gbp"}

// CleanAmount parses a currency cell to a float. Symbols, thousands separators
// and textual currency prefixes are stripped; parenthesized numbers are
// negative. Unparseable cells yield nil, never an error.
func CleanAmount(raw string) *float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	var builder strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			builder.WriteRune(r)
		case r == ',', r == ' ', r == '\u00a0':
			// thousands separators and padding
		case r == '₹', r == '$', r == '€', r == '£', r == '¥':
			// currency symbols
		default:
			builder.WriteRune(r)
		}
	}
	cleaned = strings.ToLower(strings.TrimSpace(builder.String()))

	for _, prefix := range currencyPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
			break
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	if negative {
		value = -value
	}
	return &value
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
	"January 2, 2006",
}

// CleanTimestamp parses a date cell against the accepted layouts. Unparseable
// cells yield nil; the caller decides whether ingestion time applies.
func CleanTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

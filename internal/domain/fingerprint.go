package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SchemaFingerprint hashes the sorted, lower-cased set of column names. Files
// sharing the same shape produce the same fingerprint regardless of column
// order, which makes it usable both for classification caching and for
// grouping uploads by provenance.
func SchemaFingerprint(columns []string) string {
	normalized := make([]string, 0, len(columns))
	for _, col := range columns {
		name := strings.ToLower(strings.TrimSpace(col))
		if name == "" {
			continue
		}
		normalized = append(normalized, name)
	}
	sort.Strings(normalized)

	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:16])
}

// RowContentHash is the per-row duplicate key: tenant scope, file shape, and
// the canonical serialized row. First occurrence within a run wins; cross-file
// deduplication stays a downstream concern.
func RowContentHash(tenantID, fingerprint string, row []string) string {
	trimmed := make([]string, len(row))
	for i, cell := range row {
		trimmed[i] = strings.TrimSpace(cell)
	}
	sum := sha256.Sum256([]byte(tenantID + "|" + fingerprint + "|" + strings.Join(trimmed, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

/*
 * streamfed is a media-aggregation gateway that federates IPTV providers
 * and the TMDB catalog into a single normalized inventory.
 * Copyright (C) 2026  The streamfed authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// BulkResult reports the outcome of one bulk save.
type BulkResult struct {
	Inserted int
	Updated  int
}

// planBulkSave partitions input documents by key existence: known keys
// become updates, unknown keys inserts. Documents with an empty key are
// dropped silently. Returned slices hold indexes into the input order.
func planBulkSave(keys []string, existing map[string]bool) (inserts, updates []int) {
	seen := map[string]bool{}
	for i, key := range keys {
		if key == "" {
			continue
		}
		// A duplicate within the same batch collapses onto the first
		// occurrence; the unique index would reject it anyway.
		if seen[key] {
			continue
		}
		seen[key] = true
		if existing[key] {
			updates = append(updates, i)
		} else {
			inserts = append(inserts, i)
		}
	}
	return inserts, updates
}

// batchIndexes splits n items into index ranges of at most size.
func batchIndexes(n, size int) [][2]int {
	if size <= 0 {
		size = defaultBatchSize
	}
	var ranges [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// tuplePlaceholders renders "($1,$2),($3,$4)..." for composite-key IN
// clauses and multi-row inserts.
func tuplePlaceholders(tuples, width int) string {
	var b strings.Builder
	arg := 1
	for t := 0; t < tuples; t++ {
		if t > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for w := 0; w < width; w++ {
			if w > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}
	return b.String()
}

// insertPlaceholders renders multi-row insert tuples of width bound
// parameters each, closed with the NOW(),NOW() timestamp pair every
// inventory table carries: "($1,..,$w,NOW(),NOW()),($w+1,..)".
func insertPlaceholders(tuples, width int) string {
	var b strings.Builder
	arg := 1
	for t := 0; t < tuples; t++ {
		if t > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for w := 0; w < width; w++ {
			if w > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(",NOW(),NOW())")
	}
	return b.String()
}

// existingKeys runs batched composite-key existence queries and returns
// the set of keys already present, joined the same way joinKeyParts does.
// All key columns are TEXT.
func (m *DBManager) existingKeys(table string, keyColumns []string, keyValues [][]string) (map[string]bool, error) {
	existing := map[string]bool{}
	if m.IsStopping() {
		return existing, nil
	}

	width := len(keyColumns)
	for _, r := range batchIndexes(len(keyValues), defaultBatchSize) {
		batch := keyValues[r[0]:r[1]]
		args := make([]interface{}, 0, len(batch)*width)
		for _, tuple := range batch {
			for _, v := range tuple {
				args = append(args, v)
			}
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE (%s) IN (%s)",
			strings.Join(keyColumns, ", "), table,
			strings.Join(keyColumns, ", "),
			tuplePlaceholders(len(batch), width))

		rows, err := m.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("existence query on %s failed: %w", table, err)
		}

		for rows.Next() {
			values := make([]string, width)
			scan := make([]interface{}, width)
			for i := range values {
				scan[i] = &values[i]
			}
			if err := rows.Scan(scan...); err != nil {
				rows.Close()
				return nil, err
			}
			existing[joinKeyParts(values...)] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

// isDuplicateKey reports a Postgres unique-violation, which single-row
// writers swallow: concurrent rerunners can race, the result is
// idempotent.
func isDuplicateKey(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// joinKeyParts joins composite-key columns into one comparable string.
// The separator cannot appear in key values.
func joinKeyParts(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

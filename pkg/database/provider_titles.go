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
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// BulkSaveProviderTitles upserts per-provider catalog rows keyed by
// (provider_id, title_key).
func (m *DBManager) BulkSaveProviderTitles(entries []types.ProviderTitle) (BulkResult, error) {
	if m.IsStopping() || len(entries) == 0 {
		return BulkResult{}, nil
	}

	keys := make([]string, len(entries))
	keyValues := make([][]string, 0, len(entries))
	for i, e := range entries {
		if e.ProviderID == "" || e.TitleKey == "" {
			continue // dropped by planBulkSave via the empty key
		}
		keys[i] = joinKeyParts(e.ProviderID, e.TitleKey)
		keyValues = append(keyValues, []string{e.ProviderID, e.TitleKey})
	}

	existing, err := m.existingKeys("provider_titles", []string{"provider_id", "title_key"}, keyValues)
	if err != nil {
		return BulkResult{}, err
	}
	inserts, updates := planBulkSave(keys, existing)

	var result BulkResult
	var wg sync.WaitGroup
	var insertErr, updateErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Inserted, insertErr = m.insertProviderTitles(entries, inserts)
	}()
	go func() {
		defer wg.Done()
		result.Updated, updateErr = m.updateProviderTitles(entries, updates)
	}()
	wg.Wait()

	if insertErr != nil {
		return result, insertErr
	}
	return result, updateErr
}

func (m *DBManager) insertProviderTitles(entries []types.ProviderTitle, indexes []int) (int, error) {
	inserted := 0
	for _, r := range batchIndexes(len(indexes), defaultBatchSize) {
		batch := indexes[r[0]:r[1]]
		args := make([]interface{}, 0, len(batch)*9)
		for _, i := range batch {
			e := entries[i]
			args = append(args, e.ProviderID, e.TitleKey, e.TitleID, e.Type, e.TMDBID,
				e.CategoryID, e.ReleaseDate, e.Ignored, e.IgnoredReason)
		}
		result, err := m.db.Exec(fmt.Sprintf(`
			INSERT INTO provider_titles (provider_id, title_key, title_id, type, tmdb_id,
				category_id, release_date, ignored, ignored_reason, created_at, last_updated)
			VALUES %s
			ON CONFLICT (provider_id, title_key) DO NOTHING`,
			insertPlaceholders(len(batch), 9)), args...)
		if err != nil {
			return inserted, &types.StorageError{Op: "insert provider_titles", Err: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			if int(n) < len(batch) {
				utils.DebugLog("Skipped %d duplicate provider_titles on insert", len(batch)-int(n))
			}
			inserted += int(n)
		}
	}
	return inserted, nil
}

func (m *DBManager) updateProviderTitles(entries []types.ProviderTitle, indexes []int) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, &types.StorageError{Op: "update provider_titles", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE provider_titles SET title_id=$3, type=$4, tmdb_id=$5, category_id=$6,
			release_date=$7, ignored=$8, ignored_reason=$9, last_updated=NOW()
		WHERE provider_id=$1 AND title_key=$2`)
	if err != nil {
		return 0, &types.StorageError{Op: "update provider_titles", Err: err}
	}
	defer stmt.Close()

	updated := 0
	for _, i := range indexes {
		e := entries[i]
		if _, err := stmt.Exec(e.ProviderID, e.TitleKey, e.TitleID, e.Type, e.TMDBID,
			e.CategoryID, e.ReleaseDate, e.Ignored, e.IgnoredReason); err != nil {
			return 0, &types.StorageError{Op: "update provider_titles", Err: err}
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, &types.StorageError{Op: "update provider_titles", Err: err}
	}
	return updated, nil
}

// GetProviderTitles loads all catalog rows for one (provider, type) pair,
// keyed by provider-local title id for the skip-policy lookup.
func (m *DBManager) GetProviderTitles(providerID, contentType string) (map[string]*types.ProviderTitle, error) {
	result := map[string]*types.ProviderTitle{}
	if m.IsStopping() {
		return result, nil
	}

	rows, err := m.db.Query(`
		SELECT provider_id, title_key, title_id, type, tmdb_id, category_id,
			release_date, ignored, ignored_reason, created_at, last_updated
		FROM provider_titles
		WHERE provider_id = $1 AND type = $2`, providerID, contentType)
	if err != nil {
		return nil, &types.StorageError{Op: "get provider_titles", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanProviderTitle(rows)
		if err != nil {
			return nil, err
		}
		result[e.TitleID] = e
	}
	return result, rows.Err()
}

// ListIgnoredTitles returns the rows soft-ignored on the last run for one
// provider, newest first.
func (m *DBManager) ListIgnoredTitles(providerID string) ([]types.ProviderTitle, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT provider_id, title_key, title_id, type, tmdb_id, category_id,
			release_date, ignored, ignored_reason, created_at, last_updated
		FROM provider_titles
		WHERE provider_id = $1 AND ignored = TRUE
		ORDER BY last_updated DESC`, providerID)
	if err != nil {
		return nil, &types.StorageError{Op: "list ignored titles", Err: err}
	}
	defer rows.Close()

	var entries []types.ProviderTitle
	for rows.Next() {
		e, err := scanProviderTitle(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// PruneProviderTitles removes rows for a (provider, type) pair whose
// title_key did not appear in the current run.
func (m *DBManager) PruneProviderTitles(providerID, contentType string, seenKeys []string) (int64, error) {
	if m.IsStopping() {
		return 0, nil
	}

	result, err := m.db.Exec(`
		DELETE FROM provider_titles
		WHERE provider_id = $1 AND type = $2 AND NOT (title_key = ANY($3))`,
		providerID, contentType, pq.Array(seenKeys))
	if err != nil {
		return 0, &types.StorageError{Op: "prune provider_titles", Err: err}
	}
	return result.RowsAffected()
}

func scanProviderTitle(rows *sql.Rows) (*types.ProviderTitle, error) {
	var e types.ProviderTitle
	err := rows.Scan(&e.ProviderID, &e.TitleKey, &e.TitleID, &e.Type, &e.TMDBID,
		&e.CategoryID, &e.ReleaseDate, &e.Ignored, &e.IgnoredReason, &e.CreatedAt, &e.LastUpdated)
	if err != nil {
		return nil, &types.StorageError{Op: "scan provider_title", Err: err}
	}
	return &e, nil
}

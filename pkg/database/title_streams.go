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
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lib/pq"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// BulkSaveTitleStreams upserts playable locations keyed by
// (title_key, stream_id, provider_id).
func (m *DBManager) BulkSaveTitleStreams(streams []types.TitleStream) (BulkResult, error) {
	if m.IsStopping() || len(streams) == 0 {
		return BulkResult{}, nil
	}

	keys := make([]string, len(streams))
	keyValues := make([][]string, 0, len(streams))
	for i, s := range streams {
		if s.TitleKey == "" || s.StreamID == "" || s.ProviderID == "" {
			continue
		}
		keys[i] = joinKeyParts(s.TitleKey, s.StreamID, s.ProviderID)
		keyValues = append(keyValues, []string{s.TitleKey, s.StreamID, s.ProviderID})
	}

	existing, err := m.existingKeys("title_streams", []string{"title_key", "stream_id", "provider_id"}, keyValues)
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
		result.Inserted, insertErr = m.insertTitleStreams(streams, inserts)
	}()
	go func() {
		defer wg.Done()
		result.Updated, updateErr = m.updateTitleStreams(streams, updates)
	}()
	wg.Wait()

	if insertErr != nil {
		return result, insertErr
	}
	return result, updateErr
}

func (m *DBManager) insertTitleStreams(streams []types.TitleStream, indexes []int) (int, error) {
	inserted := 0
	for _, r := range batchIndexes(len(indexes), defaultBatchSize) {
		batch := indexes[r[0]:r[1]]
		args := make([]interface{}, 0, len(batch)*4)
		for _, i := range batch {
			s := streams[i]
			args = append(args, s.TitleKey, s.StreamID, s.ProviderID, s.ProxyURL)
		}
		result, err := m.db.Exec(fmt.Sprintf(`
			INSERT INTO title_streams (title_key, stream_id, provider_id, proxy_url, created_at, last_updated)
			VALUES %s
			ON CONFLICT (title_key, stream_id, provider_id) DO NOTHING`,
			insertPlaceholders(len(batch), 4)), args...)
		if err != nil {
			return inserted, &types.StorageError{Op: "insert title_streams", Err: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			if int(n) < len(batch) {
				utils.DebugLog("Skipped %d duplicate title_streams on insert", len(batch)-int(n))
			}
			inserted += int(n)
		}
	}
	return inserted, nil
}

func (m *DBManager) updateTitleStreams(streams []types.TitleStream, indexes []int) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, &types.StorageError{Op: "update title_streams", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE title_streams SET proxy_url=$4, last_updated=NOW()
		WHERE title_key=$1 AND stream_id=$2 AND provider_id=$3`)
	if err != nil {
		return 0, &types.StorageError{Op: "update title_streams", Err: err}
	}
	defer stmt.Close()

	updated := 0
	for _, i := range indexes {
		s := streams[i]
		if _, err := stmt.Exec(s.TitleKey, s.StreamID, s.ProviderID, s.ProxyURL); err != nil {
			return 0, &types.StorageError{Op: "update title_streams", Err: err}
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, &types.StorageError{Op: "update title_streams", Err: err}
	}
	return updated, nil
}

// StreamSource is one resolver candidate: a playable location joined with
// its provider configuration.
type StreamSource struct {
	types.TitleStream
	Provider types.Provider
}

// GetStreamSources returns the candidates for one (title, stream) pair
// from enabled, undeleted providers, ordered by provider priority
// ascending with unset priorities last.
func (m *DBManager) GetStreamSources(titleKey, streamID string) ([]StreamSource, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT s.title_key, s.stream_id, s.provider_id, s.proxy_url,
			p.id, p.type, p.enabled, p.deleted, p.priority, p.api_url,
			p.username, p.password, p.streams_urls, p.api_rate
		FROM title_streams s
		JOIN iptv_providers p ON p.id = s.provider_id
		WHERE s.title_key = $1 AND s.stream_id = $2
		  AND p.enabled = TRUE AND p.deleted = FALSE
		ORDER BY (CASE WHEN p.priority <= 0 THEN 999 ELSE p.priority END), p.id`,
		titleKey, streamID)
	if err != nil {
		return nil, &types.StorageError{Op: "get stream sources", Err: err}
	}
	defer rows.Close()

	var sources []StreamSource
	for rows.Next() {
		var src StreamSource
		var streamsURLs, apiRate []byte
		err := rows.Scan(&src.TitleKey, &src.StreamID, &src.ProviderID, &src.ProxyURL,
			&src.Provider.ID, &src.Provider.Type, &src.Provider.Enabled, &src.Provider.Deleted,
			&src.Provider.Priority, &src.Provider.APIURL, &src.Provider.Username,
			&src.Provider.Password, &streamsURLs, &apiRate)
		if err != nil {
			return nil, &types.StorageError{Op: "scan stream source", Err: err}
		}
		if len(streamsURLs) > 0 {
			_ = json.Unmarshal(streamsURLs, &src.Provider.StreamsURLs)
		}
		if len(apiRate) > 0 {
			_ = json.Unmarshal(apiRate, &src.Provider.APIRate)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// GetProviderStreamKeys returns, for one provider, the sorted stream-id
// set per title_key. Feeds the playlist-diff skip policy.
func (m *DBManager) GetProviderStreamKeys(providerID string) (map[string][]string, error) {
	result := map[string][]string{}
	if m.IsStopping() {
		return result, nil
	}

	rows, err := m.db.Query(`
		SELECT title_key, stream_id FROM title_streams WHERE provider_id = $1`, providerID)
	if err != nil {
		return nil, &types.StorageError{Op: "get provider stream keys", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var titleKey, streamID string
		if err := rows.Scan(&titleKey, &streamID); err != nil {
			return nil, err
		}
		result[titleKey] = append(result[titleKey], streamID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ids := range result {
		sort.Strings(ids)
	}
	return result, nil
}

// DeleteStreamsNotIn removes a provider's streams for one title that left
// the upstream inventory (episodes dropped between runs).
func (m *DBManager) DeleteStreamsNotIn(providerID, titleKey string, keepStreamIDs []string) (int64, error) {
	if m.IsStopping() {
		return 0, nil
	}

	result, err := m.db.Exec(`
		DELETE FROM title_streams
		WHERE provider_id = $1 AND title_key = $2 AND NOT (stream_id = ANY($3))`,
		providerID, titleKey, pq.Array(keepStreamIDs))
	if err != nil {
		return 0, &types.StorageError{Op: "delete stale streams", Err: err}
	}
	return result.RowsAffected()
}

// PruneTitleStreams removes all streams of a provider for titles of one
// type that disappeared from the current run. The title_key prefix
// carries the type.
func (m *DBManager) PruneTitleStreams(providerID, contentType string, seenKeys []string) (int64, error) {
	if m.IsStopping() {
		return 0, nil
	}

	result, err := m.db.Exec(`
		DELETE FROM title_streams
		WHERE provider_id = $1 AND title_key LIKE $2 || '-%' AND NOT (title_key = ANY($3))`,
		providerID, contentType, pq.Array(seenKeys))
	if err != nil {
		return 0, &types.StorageError{Op: "prune title_streams", Err: err}
	}
	return result.RowsAffected()
}

// CountTitleStreams reports the total number of playable locations.
func (m *DBManager) CountTitleStreams() (int, error) {
	if m.IsStopping() {
		return 0, nil
	}
	var count int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM title_streams`).Scan(&count); err != nil {
		return 0, &types.StorageError{Op: "count title_streams", Err: err}
	}
	return count, nil
}

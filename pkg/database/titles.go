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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const titleColumns = `title_key, title_id, type, title, release_date, overview,
	vote_average, genres, runtime, poster_path, backdrop_path, imdb_id, streams,
	created_at, last_updated`

// BulkSaveTitles upserts canonical titles: existing title_keys are updated
// in place, new ones inserted with fresh timestamps.
func (m *DBManager) BulkSaveTitles(titles []types.Title) (BulkResult, error) {
	if m.IsStopping() || len(titles) == 0 {
		return BulkResult{}, nil
	}

	keys := make([]string, len(titles))
	keyValues := make([][]string, 0, len(titles))
	for i, t := range titles {
		keys[i] = t.TitleKey
		if t.TitleKey != "" {
			keyValues = append(keyValues, []string{t.TitleKey})
		}
	}

	existing, err := m.existingKeys("titles", []string{"title_key"}, keyValues)
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
		result.Inserted, insertErr = m.insertTitles(titles, inserts)
	}()
	go func() {
		defer wg.Done()
		result.Updated, updateErr = m.updateTitles(titles, updates)
	}()
	wg.Wait()

	if insertErr != nil {
		return result, insertErr
	}
	return result, updateErr
}

func (m *DBManager) insertTitles(titles []types.Title, indexes []int) (int, error) {
	inserted := 0
	for _, r := range batchIndexes(len(indexes), defaultBatchSize) {
		batch := indexes[r[0]:r[1]]
		args := make([]interface{}, 0, len(batch)*13)
		for _, i := range batch {
			t := titles[i]
			args = append(args, t.TitleKey, t.TitleID, t.Type, t.Title, t.ReleaseDate, t.Overview,
				t.VoteAverage, mustJSON(t.Genres), t.Runtime, t.PosterPath, t.BackdropPath,
				t.IMDBID, mustJSON(t.Streams))
		}
		result, err := m.db.Exec(fmt.Sprintf(`
			INSERT INTO titles (%s)
			VALUES %s
			ON CONFLICT (title_key) DO NOTHING`,
			titleColumns, insertPlaceholders(len(batch), 13)), args...)
		if err != nil {
			return inserted, &types.StorageError{Op: "insert titles", Err: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			if int(n) < len(batch) {
				utils.DebugLog("Skipped %d duplicate titles on insert", len(batch)-int(n))
			}
			inserted += int(n)
		}
	}
	return inserted, nil
}

func (m *DBManager) updateTitles(titles []types.Title, indexes []int) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, &types.StorageError{Op: "update titles", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE titles SET title_id=$2, type=$3, title=$4, release_date=$5, overview=$6,
			vote_average=$7, genres=$8, runtime=$9, poster_path=$10, backdrop_path=$11,
			imdb_id=$12, streams=$13, last_updated=NOW()
		WHERE title_key=$1`)
	if err != nil {
		return 0, &types.StorageError{Op: "update titles", Err: err}
	}
	defer stmt.Close()

	updated := 0
	for _, i := range indexes {
		t := titles[i]
		if _, err := stmt.Exec(t.TitleKey, t.TitleID, t.Type, t.Title, t.ReleaseDate, t.Overview,
			t.VoteAverage, mustJSON(t.Genres), t.Runtime, t.PosterPath, t.BackdropPath,
			t.IMDBID, mustJSON(t.Streams)); err != nil {
			return 0, &types.StorageError{Op: "update titles", Err: err}
		}
		updated++
	}
	if err := tx.Commit(); err != nil {
		return 0, &types.StorageError{Op: "update titles", Err: err}
	}
	return updated, nil
}

// GetTitleByKey fetches one canonical title.
func (m *DBManager) GetTitleByKey(titleKey string) (*types.Title, error) {
	if m.IsStopping() {
		return nil, types.ErrNotFound
	}
	row := m.db.QueryRow(fmt.Sprintf(`SELECT %s FROM titles WHERE title_key = $1`, titleColumns), titleKey)
	return scanTitle(row)
}

// GetTitlesByKeys fetches canonical titles for a key set, unordered.
func (m *DBManager) GetTitlesByKeys(keys []string) ([]types.Title, error) {
	if m.IsStopping() || len(keys) == 0 {
		return nil, nil
	}
	rows, err := m.db.Query(fmt.Sprintf(`SELECT %s FROM titles WHERE title_key = ANY($1)`, titleColumns), pq.Array(keys))
	if err != nil {
		return nil, &types.StorageError{Op: "get titles by keys", Err: err}
	}
	defer rows.Close()
	return scanTitles(rows)
}

// GetTitleByIMDB fetches one canonical title by its IMDB id, used when a
// downstream client addresses content the IMDB way.
func (m *DBManager) GetTitleByIMDB(contentType, imdbID string) (*types.Title, error) {
	if m.IsStopping() || imdbID == "" {
		return nil, types.ErrNotFound
	}
	row := m.db.QueryRow(fmt.Sprintf(`SELECT %s FROM titles WHERE type = $1 AND imdb_id = $2`, titleColumns),
		contentType, imdbID)
	return scanTitle(row)
}

// ListTitles pages through the catalog, optionally restricted to one type
// and filtered by a case-insensitive substring of the display title.
func (m *DBManager) ListTitles(contentType, search string, limit, offset int) ([]types.Title, error) {
	if m.IsStopping() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM titles WHERE ($1 = '' OR type = $1)`, titleColumns)
	args := []interface{}{contentType}
	if search != "" {
		query += ` AND title ILIKE $2 ORDER BY title LIMIT $3 OFFSET $4`
		args = append(args, "%"+search+"%", limit, offset)
	} else {
		query += ` ORDER BY title LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "list titles", Err: err}
	}
	defer rows.Close()
	return scanTitles(rows)
}

// CountTitles returns the number of canonical titles of one type.
func (m *DBManager) CountTitles(contentType string) (int, error) {
	if m.IsStopping() {
		return 0, nil
	}
	var count int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM titles WHERE type = $1`, contentType).Scan(&count)
	if err != nil {
		return 0, &types.StorageError{Op: "count titles", Err: err}
	}
	return count, nil
}

// DeleteOrphanTitles removes titles no provider serves anymore: no
// remaining title_streams row anywhere references them.
func (m *DBManager) DeleteOrphanTitles() (int64, error) {
	if m.IsStopping() {
		return 0, nil
	}
	result, err := m.db.Exec(`
		DELETE FROM titles
		WHERE NOT EXISTS (
			SELECT 1 FROM title_streams WHERE title_streams.title_key = titles.title_key
		)`)
	if err != nil {
		return 0, &types.StorageError{Op: "delete orphan titles", Err: err}
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTitle(row rowScanner) (*types.Title, error) {
	var t types.Title
	var genres, streams []byte
	err := row.Scan(&t.TitleKey, &t.TitleID, &t.Type, &t.Title, &t.ReleaseDate, &t.Overview,
		&t.VoteAverage, &genres, &t.Runtime, &t.PosterPath, &t.BackdropPath, &t.IMDBID, &streams,
		&t.CreatedAt, &t.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StorageError{Op: "scan title", Err: err}
	}
	if len(genres) > 0 {
		_ = json.Unmarshal(genres, &t.Genres)
	}
	if len(streams) > 0 {
		_ = json.Unmarshal(streams, &t.Streams)
	}
	return &t, nil
}

func scanTitles(rows *sql.Rows) ([]types.Title, error) {
	var titles []types.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, *t)
	}
	return titles, rows.Err()
}

// mustJSON marshals nested maps/slices for JSONB columns; nil collapses
// to SQL NULL.
func mustJSON(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		utils.WarnLog("JSONB marshal failed: %v", err)
		return nil
	}
	return data
}

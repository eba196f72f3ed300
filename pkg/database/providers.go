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

	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const providerColumns = `id, type, enabled, deleted, priority, api_url,
	username, password, streams_urls, api_rate, created_at, last_updated`

// ListProviders returns undeleted providers ordered by priority ascending,
// unset priorities last.
func (m *DBManager) ListProviders() ([]types.Provider, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT ` + providerColumns + `
		FROM iptv_providers
		WHERE deleted = FALSE
		ORDER BY (CASE WHEN priority <= 0 THEN 999 ELSE priority END), id`)
	if err != nil {
		return nil, &types.StorageError{Op: "list providers", Err: err}
	}
	defer rows.Close()

	var providers []types.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

// GetProvider fetches one provider by id, deleted ones included.
func (m *DBManager) GetProvider(id string) (*types.Provider, error) {
	if m.IsStopping() {
		return nil, types.ErrNotFound
	}
	row := m.db.QueryRow(`SELECT `+providerColumns+` FROM iptv_providers WHERE id = $1`, id)
	return scanProvider(row)
}

// SaveProvider upserts a provider configuration by id.
func (m *DBManager) SaveProvider(p *types.Provider) error {
	if m.IsStopping() {
		return nil
	}

	streamsURLs := mustJSON(p.StreamsURLs)
	apiRate := mustJSON(p.APIRate)

	result, err := m.db.Exec(`
		UPDATE iptv_providers SET type=$2, enabled=$3, deleted=$4, priority=$5, api_url=$6,
			username=$7, password=$8, streams_urls=$9, api_rate=$10, last_updated=NOW()
		WHERE id=$1`,
		p.ID, p.Type, p.Enabled, p.Deleted, p.Priority, p.APIURL,
		p.Username, p.Password, streamsURLs, apiRate)
	if err != nil {
		return &types.StorageError{Op: "save provider", Err: err}
	}
	if n, _ := result.RowsAffected(); n > 0 {
		utils.DebugLog("Updated provider %s", p.ID)
		return nil
	}

	_, err = m.db.Exec(`
		INSERT INTO iptv_providers (id, type, enabled, deleted, priority, api_url,
			username, password, streams_urls, api_rate, created_at, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())`,
		p.ID, p.Type, p.Enabled, p.Deleted, p.Priority, p.APIURL,
		p.Username, p.Password, streamsURLs, apiRate)
	if err != nil {
		if isDuplicateKey(err) {
			utils.DebugLog("Provider %s inserted concurrently, ignoring", p.ID)
			return nil
		}
		return &types.StorageError{Op: "save provider", Err: err}
	}
	utils.InfoLog("Registered provider %s (%s)", p.ID, p.Type)
	return nil
}

// SoftDeleteProvider marks a provider deleted without dropping its rows;
// the next sync prunes its inventory.
func (m *DBManager) SoftDeleteProvider(id string) error {
	if m.IsStopping() {
		return nil
	}
	result, err := m.db.Exec(`
		UPDATE iptv_providers SET deleted = TRUE, enabled = FALSE, last_updated = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return &types.StorageError{Op: "delete provider", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func scanProvider(row rowScanner) (*types.Provider, error) {
	var p types.Provider
	var streamsURLs, apiRate []byte
	err := row.Scan(&p.ID, &p.Type, &p.Enabled, &p.Deleted, &p.Priority, &p.APIURL,
		&p.Username, &p.Password, &streamsURLs, &apiRate, &p.CreatedAt, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StorageError{Op: "scan provider", Err: err}
	}
	if len(streamsURLs) > 0 {
		_ = json.Unmarshal(streamsURLs, &p.StreamsURLs)
	}
	if len(apiRate) > 0 {
		_ = json.Unmarshal(apiRate, &p.APIRate)
	}
	return &p, nil
}

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

// Well-known settings keys.
const (
	SettingTMDBAPIKey     = "tmdb_api_key"
	SettingInventoryStats = "inventory_stats"
)

// GetSetting reads one settings value. Missing keys return ErrNotFound.
func (m *DBManager) GetSetting(key string) (string, error) {
	if m.IsStopping() {
		return "", types.ErrNotFound
	}
	var value string
	err := m.db.QueryRow(`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", &types.StorageError{Op: "get setting", Err: err}
	}
	return value, nil
}

// SetSetting upserts one settings value.
func (m *DBManager) SetSetting(key, value string) error {
	if m.IsStopping() {
		return nil
	}
	_, err := m.db.Exec(`
		INSERT INTO settings (key, value, last_updated) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, last_updated = NOW()`,
		key, value)
	if err != nil {
		return &types.StorageError{Op: "set setting", Err: err}
	}
	return nil
}

// InventoryStats is the aggregate snapshot refreshed by the stats job and
// served by the status API.
type InventoryStats struct {
	Movies         int            `json:"movies"`
	TVShows        int            `json:"tvshows"`
	TitleStreams   int            `json:"title_streams"`
	IgnoredTitles  map[string]int `json:"ignored_titles"`
	ProviderTitles map[string]int `json:"provider_titles"`
}

// ComputeInventoryStats gathers the aggregate counts from the live tables.
func (m *DBManager) ComputeInventoryStats() (*InventoryStats, error) {
	if m.IsStopping() {
		return &InventoryStats{}, nil
	}

	stats := &InventoryStats{
		IgnoredTitles:  map[string]int{},
		ProviderTitles: map[string]int{},
	}

	var err error
	if stats.Movies, err = m.CountTitles(types.TypeMovies); err != nil {
		return nil, err
	}
	if stats.TVShows, err = m.CountTitles(types.TypeTVShows); err != nil {
		return nil, err
	}
	if stats.TitleStreams, err = m.CountTitleStreams(); err != nil {
		return nil, err
	}

	rows, err := m.db.Query(`
		SELECT provider_id, ignored, COUNT(*)
		FROM provider_titles
		GROUP BY provider_id, ignored`)
	if err != nil {
		return nil, &types.StorageError{Op: "compute stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var providerID string
		var ignored bool
		var count int
		if err := rows.Scan(&providerID, &ignored, &count); err != nil {
			return nil, err
		}
		stats.ProviderTitles[providerID] += count
		if ignored {
			stats.IgnoredTitles[providerID] = count
		}
	}
	return stats, rows.Err()
}

// RefreshInventoryStats recomputes and persists the snapshot.
func (m *DBManager) RefreshInventoryStats() (*InventoryStats, error) {
	stats, err := m.ComputeInventoryStats()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	if err := m.SetSetting(SettingInventoryStats, string(data)); err != nil {
		return nil, err
	}
	utils.DebugLog("Inventory stats refreshed: %d movies, %d shows, %d streams",
		stats.Movies, stats.TVShows, stats.TitleStreams)
	return stats, nil
}

// GetInventoryStats returns the last persisted snapshot.
func (m *DBManager) GetInventoryStats() (*InventoryStats, error) {
	raw, err := m.GetSetting(SettingInventoryStats)
	if err != nil {
		return nil, err
	}
	var stats InventoryStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, &types.StorageError{Op: "get inventory stats", Err: err}
	}
	return &stats, nil
}

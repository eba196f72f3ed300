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

	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// initSchema creates database tables if they don't exist. Uniqueness is
// enforced by the index bootstrap, not here, so duplicate reconciliation
// can run before the unique indexes are created.
func (m *DBManager) initSchema() error {
	utils.InfoLog("Initializing database schema")

	if m == nil || m.db == nil {
		return fmt.Errorf("database not initialized")
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"titles", `
			CREATE TABLE IF NOT EXISTS titles (
				title_key TEXT NOT NULL,
				title_id TEXT NOT NULL,
				type TEXT NOT NULL,
				title TEXT,
				release_date TEXT,
				overview TEXT,
				vote_average DOUBLE PRECISION DEFAULT 0,
				genres JSONB,
				runtime INTEGER DEFAULT 0,
				poster_path TEXT,
				backdrop_path TEXT,
				imdb_id TEXT,
				streams JSONB,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"provider_titles", `
			CREATE TABLE IF NOT EXISTS provider_titles (
				provider_id TEXT NOT NULL,
				title_key TEXT NOT NULL,
				title_id TEXT NOT NULL,
				type TEXT NOT NULL,
				tmdb_id INTEGER DEFAULT 0,
				category_id TEXT,
				release_date TEXT,
				ignored BOOLEAN DEFAULT FALSE,
				ignored_reason TEXT,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"title_streams", `
			CREATE TABLE IF NOT EXISTS title_streams (
				title_key TEXT NOT NULL,
				stream_id TEXT NOT NULL,
				provider_id TEXT NOT NULL,
				proxy_url TEXT NOT NULL,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"iptv_providers", `
			CREATE TABLE IF NOT EXISTS iptv_providers (
				id TEXT NOT NULL,
				type TEXT NOT NULL,
				enabled BOOLEAN DEFAULT TRUE,
				deleted BOOLEAN DEFAULT FALSE,
				priority INTEGER DEFAULT 0,
				api_url TEXT NOT NULL,
				username TEXT,
				password TEXT,
				streams_urls JSONB,
				api_rate JSONB,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"job_history", `
			CREATE TABLE IF NOT EXISTS job_history (
				job_name TEXT NOT NULL,
				provider_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				last_execution TIMESTAMPTZ,
				execution_count INTEGER DEFAULT 0,
				last_result TEXT,
				last_error TEXT,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				username TEXT NOT NULL,
				password TEXT,
				api_key TEXT,
				created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"settings", `
			CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT,
				last_updated TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
		`},
	}

	for _, table := range tables {
		if _, err := m.db.Exec(table.ddl); err != nil {
			utils.ErrorLog("Failed to create %s table: %v", table.name, err)
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	utils.InfoLog("Database schema initialized successfully")
	return nil
}

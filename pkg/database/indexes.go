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

	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// IndexDefinition declares one index the store must carry. Unique indexes
// trigger duplicate reconciliation before creation.
type IndexDefinition struct {
	Name        string
	Table       string
	Columns     []string
	Unique      bool
	Sparse      bool // partial index skipping NULL/empty values
	Description string
}

// indexDefinitions is the full index set. Re-ingestion depends on the
// unique keys; the rest back the read paths of the API surfaces.
func indexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		{Name: "idx_titles_title_key", Table: "titles", Columns: []string{"title_key"}, Unique: true, Description: "canonical title identity"},
		{Name: "idx_titles_type_title", Table: "titles", Columns: []string{"type", "title"}, Description: "catalog listings"},
		{Name: "idx_titles_type_release", Table: "titles", Columns: []string{"type", "release_date"}, Description: "release ordering per type"},
		{Name: "idx_titles_release", Table: "titles", Columns: []string{"release_date"}, Description: "global release ordering"},

		{Name: "idx_provider_titles_identity", Table: "provider_titles", Columns: []string{"provider_id", "title_key"}, Unique: true, Description: "one row per provider and title"},
		{Name: "idx_provider_titles_type", Table: "provider_titles", Columns: []string{"provider_id", "type"}, Description: "per-run existing map load"},
		{Name: "idx_provider_titles_ignored", Table: "provider_titles", Columns: []string{"provider_id", "ignored"}, Description: "ignored snapshots"},
		{Name: "idx_provider_titles_updated", Table: "provider_titles", Columns: []string{"provider_id", "last_updated"}, Description: "prune by run"},
		{Name: "idx_provider_titles_key", Table: "provider_titles", Columns: []string{"title_key"}, Description: "reverse lookup"},

		{Name: "idx_title_streams_identity", Table: "title_streams", Columns: []string{"title_key", "stream_id", "provider_id"}, Unique: true, Description: "one row per playable location"},
		{Name: "idx_title_streams_stream", Table: "title_streams", Columns: []string{"title_key", "stream_id"}, Description: "resolver candidate lookup"},
		{Name: "idx_title_streams_key", Table: "title_streams", Columns: []string{"title_key"}, Description: "orphan detection"},
		{Name: "idx_title_streams_provider", Table: "title_streams", Columns: []string{"provider_id"}, Description: "provider prune"},
		{Name: "idx_title_streams_provider_key", Table: "title_streams", Columns: []string{"provider_id", "title_key"}, Description: "per-provider stream sets"},

		{Name: "idx_job_history_name", Table: "job_history", Columns: []string{"job_name"}, Description: "scheduler lookups"},
		{Name: "idx_job_history_identity", Table: "job_history", Columns: []string{"job_name", "provider_id"}, Unique: true, Description: "one row per job and provider"},
		{Name: "idx_job_history_status", Table: "job_history", Columns: []string{"status"}, Description: "crash recovery scan"},

		{Name: "idx_providers_id", Table: "iptv_providers", Columns: []string{"id"}, Unique: true, Description: "provider identity"},
		{Name: "idx_providers_priority", Table: "iptv_providers", Columns: []string{"deleted", "priority"}, Description: "ordered provider list"},

		{Name: "idx_users_username", Table: "users", Columns: []string{"username"}, Unique: true, Description: "login identity"},
		{Name: "idx_users_api_key", Table: "users", Columns: []string{"api_key"}, Unique: true, Sparse: true, Description: "api-key lookup, absent keys excluded"},
	}
}

// ensureIndexes compares the wanted index set against pg_indexes by name
// and creates only what is missing. Unique indexes run duplicate removal
// first so creation cannot fail on legacy duplicate rows.
func (m *DBManager) ensureIndexes() error {
	existing, err := m.existingIndexNames()
	if err != nil {
		return err
	}

	for _, def := range indexDefinitions() {
		if existing[def.Name] {
			continue
		}
		if def.Unique {
			if err := m.removeDuplicates(def); err != nil {
				return err
			}
		}
		if err := m.createIndex(def); err != nil {
			return err
		}
		utils.InfoLog("Created index %s on %s(%s)", def.Name, def.Table, strings.Join(def.Columns, ", "))
	}
	return nil
}

func (m *DBManager) existingIndexNames() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT indexname FROM pg_indexes WHERE schemaname = current_schema()`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[name] = true
	}
	return existing, rows.Err()
}

func (m *DBManager) createIndex(def IndexDefinition) error {
	var b strings.Builder
	b.WriteString("CREATE ")
	if def.Unique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX IF NOT EXISTS %s ON %s (%s)", def.Name, def.Table, strings.Join(def.Columns, ", "))
	if def.Sparse {
		conditions := make([]string, 0, len(def.Columns))
		for _, col := range def.Columns {
			conditions = append(conditions, fmt.Sprintf("%s IS NOT NULL AND %s <> ''", col, col))
		}
		fmt.Fprintf(&b, " WHERE %s", strings.Join(conditions, " AND "))
	}

	if _, err := m.db.Exec(b.String()); err != nil {
		utils.ErrorLog("Failed to create index %s: %v", def.Name, err)
		return fmt.Errorf("failed to create index %s: %w", def.Name, err)
	}
	return nil
}

// removeDuplicates deletes all but the newest row in every group sharing
// the unique key, newest meaning greatest (last_updated, created_at).
// Idempotent; run before every unique index creation.
func (m *DBManager) removeDuplicates(def IndexDefinition) error {
	joins := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		joins = append(joins, fmt.Sprintf("a.%s = b.%s", col, col))
	}

	query := fmt.Sprintf(`
		DELETE FROM %s a USING %s b
		WHERE %s
		  AND (a.last_updated, a.created_at, a.ctid) < (b.last_updated, b.created_at, b.ctid)
	`, def.Table, def.Table, strings.Join(joins, " AND "))

	result, err := m.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to reconcile duplicates for %s: %w", def.Name, err)
	}
	if removed, err := result.RowsAffected(); err == nil && removed > 0 {
		utils.WarnLog("Removed %d duplicate rows from %s before creating %s", removed, def.Table, def.Name)
	}
	return nil
}

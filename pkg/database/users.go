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

	"github.com/google/uuid"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// GetUserByUsername fetches one downstream user.
func (m *DBManager) GetUserByUsername(username string) (*types.User, error) {
	if m.IsStopping() {
		return nil, types.ErrNotFound
	}
	row := m.db.QueryRow(`
		SELECT username, password, api_key, created_at, last_updated
		FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetUserByAPIKey fetches the user owning an api key. Empty keys never
// match.
func (m *DBManager) GetUserByAPIKey(apiKey string) (*types.User, error) {
	if m.IsStopping() || apiKey == "" {
		return nil, types.ErrNotFound
	}
	row := m.db.QueryRow(`
		SELECT username, password, api_key, created_at, last_updated
		FROM users WHERE api_key = $1`, apiKey)
	return scanUser(row)
}

// CreateUser registers a downstream user. A missing api key is generated.
func (m *DBManager) CreateUser(u *types.User) error {
	if m.IsStopping() {
		return nil
	}
	if u.APIKey == "" {
		u.APIKey = uuid.New().String()
	}

	_, err := m.db.Exec(`
		INSERT INTO users (username, password, api_key, created_at, last_updated)
		VALUES ($1,$2,$3,NOW(),NOW())`,
		u.Username, u.Password, u.APIKey)
	if err != nil {
		return &types.StorageError{Op: "create user", Err: err}
	}
	utils.InfoLog("Created user %s (api key %s)", u.Username, utils.MaskString(u.APIKey))
	return nil
}

// RotateAPIKey replaces a user's api key and returns the new value.
func (m *DBManager) RotateAPIKey(username string) (string, error) {
	if m.IsStopping() {
		return "", types.ErrNotFound
	}

	newKey := uuid.New().String()
	result, err := m.db.Exec(`
		UPDATE users SET api_key = $2, last_updated = NOW() WHERE username = $1`,
		username, newKey)
	if err != nil {
		return "", &types.StorageError{Op: "rotate api key", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", types.ErrNotFound
	}
	utils.InfoLog("Rotated api key for user %s", username)
	return newKey, nil
}

// ListUsers returns all downstream users.
func (m *DBManager) ListUsers() ([]types.User, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT username, password, api_key, created_at, last_updated
		FROM users ORDER BY username`)
	if err != nil {
		return nil, &types.StorageError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeleteUser removes a downstream user.
func (m *DBManager) DeleteUser(username string) error {
	if m.IsStopping() {
		return nil
	}
	result, err := m.db.Exec(`DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return &types.StorageError{Op: "delete user", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.Username, &u.Password, &u.APIKey, &u.CreatedAt, &u.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StorageError{Op: "scan user", Err: err}
	}
	return &u, nil
}

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
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// ResetRunningJobs rewrites rows stuck in "running" to "cancelled". Runs
// once at process start; a running row at that point is a crash leftover.
func (m *DBManager) ResetRunningJobs() (int64, error) {
	result, err := m.db.Exec(`
		UPDATE job_history
		SET status = $1, last_error = 'interrupted by restart', last_updated = NOW()
		WHERE status = $2`,
		types.JobStatusCancelled, types.JobStatusRunning)
	if err != nil {
		return 0, &types.StorageError{Op: "reset running jobs", Err: err}
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		utils.WarnLog("Marked %d interrupted job runs as cancelled", n)
	}
	return n, nil
}

// StartJobRun upserts the history row for a starting job: status running,
// execution count incremented, last_execution stamped.
func (m *DBManager) StartJobRun(jobName, providerID string) error {
	if m.IsStopping() {
		return nil
	}

	result, err := m.db.Exec(`
		UPDATE job_history
		SET status = $3, last_execution = NOW(), execution_count = execution_count + 1,
			last_error = '', last_updated = NOW()
		WHERE job_name = $1 AND provider_id = $2`,
		jobName, providerID, types.JobStatusRunning)
	if err != nil {
		return &types.StorageError{Op: "start job run", Err: err}
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	_, err = m.db.Exec(`
		INSERT INTO job_history (job_name, provider_id, status, last_execution, execution_count, created_at, last_updated)
		VALUES ($1,$2,$3,NOW(),1,NOW(),NOW())`,
		jobName, providerID, types.JobStatusRunning)
	if err != nil {
		if isDuplicateKey(err) {
			return nil
		}
		return &types.StorageError{Op: "start job run", Err: err}
	}
	return nil
}

// FinishJobRun records the terminal status of a run.
func (m *DBManager) FinishJobRun(jobName, providerID, status, result, lastError string) error {
	if m.IsStopping() {
		return nil
	}

	_, err := m.db.Exec(`
		UPDATE job_history
		SET status = $3, last_result = $4, last_error = $5, last_updated = NOW()
		WHERE job_name = $1 AND provider_id = $2`,
		jobName, providerID, status, result, lastError)
	if err != nil {
		return &types.StorageError{Op: "finish job run", Err: err}
	}
	return nil
}

// GetJobsByStatus returns history rows in one status.
func (m *DBManager) GetJobsByStatus(status string) ([]types.JobHistory, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT job_name, provider_id, status, last_execution, execution_count,
			last_result, last_error, created_at, last_updated
		FROM job_history WHERE status = $1`, status)
	if err != nil {
		return nil, &types.StorageError{Op: "get jobs by status", Err: err}
	}
	defer rows.Close()

	var jobs []types.JobHistory
	for rows.Next() {
		var j types.JobHistory
		if err := rows.Scan(&j.JobName, &j.ProviderID, &j.Status, &j.LastExecution,
			&j.ExecutionCount, &j.LastResult, &j.LastError, &j.CreatedAt, &j.LastUpdated); err != nil {
			return nil, &types.StorageError{Op: "scan job history", Err: err}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListJobHistory returns all history rows, most recently updated first.
func (m *DBManager) ListJobHistory() ([]types.JobHistory, error) {
	if m.IsStopping() {
		return nil, nil
	}

	rows, err := m.db.Query(`
		SELECT job_name, provider_id, status, last_execution, execution_count,
			last_result, last_error, created_at, last_updated
		FROM job_history ORDER BY last_updated DESC`)
	if err != nil {
		return nil, &types.StorageError{Op: "list job history", Err: err}
	}
	defer rows.Close()

	var jobs []types.JobHistory
	for rows.Next() {
		var j types.JobHistory
		if err := rows.Scan(&j.JobName, &j.ProviderID, &j.Status, &j.LastExecution,
			&j.ExecutionCount, &j.LastResult, &j.LastError, &j.CreatedAt, &j.LastUpdated); err != nil {
			return nil, &types.StorageError{Op: "scan job history", Err: err}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

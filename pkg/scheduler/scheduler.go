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

// Package scheduler runs the recurring maintenance jobs: interval timers,
// singleton execution per job, dependency gating, and history recording
// with crash recovery.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// HistoryStore persists job execution state.
type HistoryStore interface {
	ResetRunningJobs() (int64, error)
	StartJobRun(jobName, providerID string) error
	FinishJobRun(jobName, providerID, status, result, lastError string) error
	GetJobsByStatus(status string) ([]types.JobHistory, error)
}

// Job is one schedulable unit of work.
type Job struct {
	Name         string
	Interval     time.Duration
	StartupDelay time.Duration

	// Run does the work and returns a human-readable result summary.
	Run func(ctx context.Context) (string, error)

	// PostExecute names jobs chained after a successful run.
	PostExecute []string

	// SkipIfRunning names jobs whose in-flight execution blocks this
	// one.
	SkipIfRunning []string
}

// Scheduler owns the job table and their timers.
type Scheduler struct {
	history HistoryStore

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	running map[string]bool
	timers  []*time.Timer
	tickers []*time.Ticker

	started  bool
	stop     chan struct{}
	inflight sync.WaitGroup
}

// New creates a scheduler over a history store.
func New(history HistoryStore) *Scheduler {
	return &Scheduler{
		history: history,
		jobs:    map[string]*Job{},
		running: map[string]bool{},
		stop:    make(chan struct{}),
	}
}

// Register adds a job to the table. Must happen before Start.
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; !exists {
		s.order = append(s.order, job.Name)
	}
	s.jobs[job.Name] = job
}

// Initialize recovers from a previous crash: history rows stuck in
// "running" become "cancelled". Timers stay unarmed until Start.
func (s *Scheduler) Initialize() error {
	_, err := s.history.ResetRunningJobs()
	return err
}

// Start arms every job: a recurring timer at its interval, plus a
// one-shot startup run after its delay so a restart does not wait a full
// interval for fresh data.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, name := range s.order {
		job := s.jobs[name]

		timer := time.AfterFunc(job.StartupDelay, func() {
			s.runScheduled(ctx, job.Name)
		})
		s.timers = append(s.timers, timer)

		ticker := time.NewTicker(job.Interval)
		s.tickers = append(s.tickers, ticker)
		go func(name string, ticker *time.Ticker) {
			for {
				select {
				case <-ticker.C:
					s.runScheduled(ctx, name)
				case <-s.stop:
					return
				}
			}
		}(job.Name, ticker)

		utils.InfoLog("Scheduled job %s every %s (first run in %s)", job.Name, job.Interval, job.StartupDelay)
	}
}

// Stop disarms all timers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	for _, t := range s.timers {
		t.Stop()
	}
	for _, t := range s.tickers {
		t.Stop()
	}
	s.mu.Unlock()

	s.inflight.Wait()
	utils.InfoLog("Scheduler stopped")
}

// runScheduled is the timer entry point: overlap and blocking are normal
// there, so those errors only log at debug.
func (s *Scheduler) runScheduled(ctx context.Context, name string) {
	if err := s.RunJob(ctx, name); err != nil {
		switch {
		case err == types.ErrAlreadyRunning:
			utils.DebugLog("Job %s still running, skipping scheduled run", name)
		case types.IsBlocked(err):
			utils.DebugLog("Job %s blocked: %v", name, err)
		default:
			utils.ErrorLog("Job %s failed: %v", name, err)
		}
	}
}

// RunJob executes one job immediately. Returns ErrAlreadyRunning when the
// job is in flight, or a BlockedError naming the jobs that gate it.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return types.ErrNotFound
	}
	if s.running[name] {
		s.mu.Unlock()
		return types.ErrAlreadyRunning
	}

	if blocking := s.blockingJobsLocked(job); len(blocking) > 0 {
		s.mu.Unlock()
		return &types.BlockedError{Job: name, BlockingJobs: blocking}
	}

	s.running[name] = true
	s.inflight.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.inflight.Done()
	}()

	return s.execute(ctx, job)
}

// blockingJobsLocked collects in-flight gating jobs, from memory first
// and from persisted running rows second (another process may hold them).
func (s *Scheduler) blockingJobsLocked(job *Job) []string {
	if len(job.SkipIfRunning) == 0 {
		return nil
	}

	var blocking []string
	for _, gate := range job.SkipIfRunning {
		if s.running[gate] {
			blocking = append(blocking, gate)
		}
	}
	if len(blocking) > 0 {
		return blocking
	}

	rows, err := s.history.GetJobsByStatus(types.JobStatusRunning)
	if err != nil {
		utils.WarnLog("Cannot check persisted running jobs: %v", err)
		return nil
	}
	for _, gate := range job.SkipIfRunning {
		for _, row := range rows {
			if row.JobName == gate {
				blocking = append(blocking, gate)
				break
			}
		}
	}
	return blocking
}

func (s *Scheduler) execute(ctx context.Context, job *Job) error {
	utils.InfoLog("Job %s starting", job.Name)
	started := time.Now()

	if err := s.history.StartJobRun(job.Name, ""); err != nil {
		utils.WarnLog("Cannot record start of job %s: %v", job.Name, err)
	}

	result, err := job.Run(ctx)
	elapsed := time.Since(started).Round(time.Millisecond)

	if err != nil {
		utils.ErrorLog("Job %s failed after %s: %v", job.Name, elapsed, err)
		if hErr := s.history.FinishJobRun(job.Name, "", types.JobStatusFailed, result, err.Error()); hErr != nil {
			utils.WarnLog("Cannot record failure of job %s: %v", job.Name, hErr)
		}
		return err
	}

	utils.InfoLog("Job %s completed in %s: %s", job.Name, elapsed, result)
	if hErr := s.history.FinishJobRun(job.Name, "", types.JobStatusCompleted, result, ""); hErr != nil {
		utils.WarnLog("Cannot record completion of job %s: %v", job.Name, hErr)
	}

	for _, next := range job.PostExecute {
		if err := s.RunJob(ctx, next); err != nil {
			utils.WarnLog("Chained job %s after %s failed: %v", next, job.Name, err)
		}
	}
	return nil
}

// RunningJobs reports the jobs currently in flight in this process.
func (s *Scheduler) RunningJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, name := range s.order {
		if s.running[name] {
			names = append(names, name)
		}
	}
	return names
}

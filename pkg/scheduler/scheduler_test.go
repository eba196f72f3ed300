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

package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/types"
)

type historyRecord struct {
	status string
	result string
	err    string
}

type fakeHistory struct {
	mu          sync.Mutex
	resetCalls  int
	runningRows []types.JobHistory
	records     map[string][]historyRecord
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: map[string][]historyRecord{}}
}

func (h *fakeHistory) ResetRunningJobs() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetCalls++
	return int64(len(h.runningRows)), nil
}

func (h *fakeHistory) StartJobRun(jobName, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[jobName] = append(h.records[jobName], historyRecord{status: types.JobStatusRunning})
	return nil
}

func (h *fakeHistory) FinishJobRun(jobName, _ , status, result, lastError string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[jobName] = append(h.records[jobName], historyRecord{status: status, result: result, err: lastError})
	return nil
}

func (h *fakeHistory) GetJobsByStatus(status string) ([]types.JobHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var rows []types.JobHistory
	for _, r := range h.runningRows {
		if r.Status == status {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (h *fakeHistory) last(jobName string) historyRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	records := h.records[jobName]
	if len(records) == 0 {
		return historyRecord{}
	}
	return records[len(records)-1]
}

func TestInitializeRecoversCrashedRuns(t *testing.T) {
	h := newFakeHistory()
	h.runningRows = []types.JobHistory{{JobName: "providers-sync", Status: types.JobStatusRunning}}

	s := New(h)
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	if h.resetCalls != 1 {
		t.Errorf("reset calls = %d", h.resetCalls)
	}
}

func TestRunJobRecordsHistory(t *testing.T) {
	h := newFakeHistory()
	s := New(h)
	s.Register(&Job{
		Name:     "sync",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			return "processed=5", nil
		},
	})

	if err := s.RunJob(context.Background(), "sync"); err != nil {
		t.Fatal(err)
	}
	last := h.last("sync")
	if last.status != types.JobStatusCompleted || last.result != "processed=5" {
		t.Errorf("record = %+v", last)
	}
}

func TestRunJobRecordsFailure(t *testing.T) {
	h := newFakeHistory()
	s := New(h)
	s.Register(&Job{
		Name:     "sync",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			return "", errors.New("upstream down")
		},
	})

	if err := s.RunJob(context.Background(), "sync"); err == nil {
		t.Fatal("job error should propagate")
	}
	last := h.last("sync")
	if last.status != types.JobStatusFailed || last.err != "upstream down" {
		t.Errorf("record = %+v", last)
	}
}

func TestRunJobSingleton(t *testing.T) {
	h := newFakeHistory()
	s := New(h)

	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once
	s.Register(&Job{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			startOnce.Do(func() { close(started) })
			<-release
			return "", nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- s.RunJob(context.Background(), "slow") }()
	<-started

	if err := s.RunJob(context.Background(), "slow"); err != types.ErrAlreadyRunning {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
	if running := s.RunningJobs(); len(running) != 1 || running[0] != "slow" {
		t.Errorf("running = %v", running)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// Finished: runnable again.
	if err := s.RunJob(context.Background(), "slow"); err != nil {
		t.Errorf("rerun after completion failed: %v", err)
	}
}

func TestRunJobBlockedByGate(t *testing.T) {
	h := newFakeHistory()
	s := New(h)

	release := make(chan struct{})
	started := make(chan struct{})
	s.Register(&Job{
		Name:     "providers-sync",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			close(started)
			<-release
			return "", nil
		},
	})
	s.Register(&Job{
		Name:          "stats-refresh",
		Interval:      time.Hour,
		SkipIfRunning: []string{"providers-sync"},
		Run: func(context.Context) (string, error) {
			return "", nil
		},
	})

	go s.RunJob(context.Background(), "providers-sync")
	<-started

	err := s.RunJob(context.Background(), "stats-refresh")
	var blocked *types.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if len(blocked.BlockingJobs) != 1 || blocked.BlockingJobs[0] != "providers-sync" {
		t.Errorf("blocking = %v", blocked.BlockingJobs)
	}
	close(release)
}

func TestRunJobBlockedByPersistedRun(t *testing.T) {
	h := newFakeHistory()
	// Another process holds the sync lock in the history table.
	h.runningRows = []types.JobHistory{{JobName: "providers-sync", Status: types.JobStatusRunning}}

	s := New(h)
	s.Register(&Job{
		Name:          "stats-refresh",
		Interval:      time.Hour,
		SkipIfRunning: []string{"providers-sync"},
		Run: func(context.Context) (string, error) {
			return "", nil
		},
	})

	err := s.RunJob(context.Background(), "stats-refresh")
	if !types.IsBlocked(err) {
		t.Errorf("err = %v, want BlockedError", err)
	}
}

func TestPostExecuteChains(t *testing.T) {
	h := newFakeHistory()
	s := New(h)

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	s.Register(&Job{
		Name:        "first",
		Interval:    time.Hour,
		PostExecute: []string{"second"},
		Run: func(context.Context) (string, error) {
			record("first")
			return "", nil
		},
	})
	s.Register(&Job{
		Name:     "second",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			record("second")
			return "", nil
		},
	})

	if err := s.RunJob(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

func TestPostExecuteSkippedOnFailure(t *testing.T) {
	h := newFakeHistory()
	s := New(h)

	chained := false
	s.Register(&Job{
		Name:        "first",
		Interval:    time.Hour,
		PostExecute: []string{"second"},
		Run: func(context.Context) (string, error) {
			return "", errors.New("boom")
		},
	})
	s.Register(&Job{
		Name:     "second",
		Interval: time.Hour,
		Run: func(context.Context) (string, error) {
			chained = true
			return "", nil
		},
	})

	s.RunJob(context.Background(), "first")
	if chained {
		t.Error("failed job must not chain its post-execute jobs")
	}
}

func TestStartupDelayRunsJob(t *testing.T) {
	h := newFakeHistory()
	s := New(h)

	ran := make(chan struct{}, 1)
	s.Register(&Job{
		Name:         "sync",
		Interval:     time.Hour,
		StartupDelay: 10 * time.Millisecond,
		Run: func(context.Context) (string, error) {
			ran <- struct{}{}
			return "", nil
		},
	})

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not fire")
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"500ms", 500 * time.Millisecond, false},
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1500", 1500 * time.Millisecond, false},
		{"", 0, true},
		{"-5s", 0, true},
		{"-500ms", 0, true},
		{"10x", 0, true},
		{"h", 0, true},
		{"ms", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseInterval(%q) should fail", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseInterval(%q) = (%v, %v), want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestJobIntervalFromEnv(t *testing.T) {
	const envVar = "STREAMFED_TEST_INTERVAL"
	defer os.Unsetenv(envVar)

	if got := jobInterval(envVar, defaultSyncInterval); got != 12*time.Hour {
		t.Errorf("unset interval = %v, want 12h", got)
	}

	os.Setenv(envVar, "45m")
	if got := jobInterval(envVar, defaultSyncInterval); got != 45*time.Minute {
		t.Errorf("overridden interval = %v, want 45m", got)
	}

	os.Setenv(envVar, "250ms")
	if got := jobInterval(envVar, defaultCleanupInterval); got != 250*time.Millisecond {
		t.Errorf("ms interval = %v, want 250ms", got)
	}

	os.Setenv(envVar, "soon")
	if got := jobInterval(envVar, defaultStatsInterval); got != time.Hour {
		t.Errorf("unparseable interval = %v, want the default", got)
	}
}

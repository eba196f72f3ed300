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

package ingest

import (
	"sync"
	"sync/atomic"
	"time"
)

// progressInterval is how often a running sync reports its remaining
// count.
const progressInterval = 30 * time.Second

// Tracker counts down remaining work for one (provider, type) run and
// reports periodically through the save callback.
type Tracker struct {
	remaining int64

	stop     chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// NewTracker starts a tracker for count items, invoking save with the
// remaining count every interval until Stop.
func NewTracker(count int, interval time.Duration, save func(remaining int)) *Tracker {
	t := &Tracker{
		remaining: int64(count),
		stop:      make(chan struct{}),
	}
	if interval <= 0 {
		interval = progressInterval
	}

	t.done.Add(1)
	go func() {
		defer t.done.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				save(t.Remaining())
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Decrement marks n items as done.
func (t *Tracker) Decrement(n int) {
	atomic.AddInt64(&t.remaining, -int64(n))
}

// Remaining returns the current remaining count.
func (t *Tracker) Remaining() int {
	return int(atomic.LoadInt64(&t.remaining))
}

// Stop ends periodic reporting. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.done.Wait()
}

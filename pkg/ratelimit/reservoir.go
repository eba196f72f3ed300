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

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/types"
)

// ErrShutdown is returned to callers whose pending Schedule was cancelled
// by a limiter swap or process shutdown.
var ErrShutdown = errors.New("rate limiter shut down")

// Reservoir admits at most Concurrent request starts per DurationSeconds
// window, with at most Concurrent in flight. Permits regenerate in a single
// refill burst at the end of each window rather than leaking back one by
// one, which matches upstream APIs that meter per interval.
type Reservoir struct {
	capacity int
	interval time.Duration

	permits chan struct{} // window admission
	slots   chan struct{} // in-flight cap

	done      chan struct{}
	closeOnce sync.Once
}

// NewReservoir builds a reservoir from a provider api_rate configuration.
// Nonsensical rates fall back to 1 request per second.
func NewReservoir(rate types.APIRate) *Reservoir {
	capacity := rate.Concurrent
	if capacity <= 0 {
		capacity = 1
	}
	seconds := rate.DurationSeconds
	if seconds <= 0 {
		seconds = 1
	}

	r := &Reservoir{
		capacity: capacity,
		interval: time.Duration(seconds) * time.Second,
		permits:  make(chan struct{}, capacity),
		slots:    make(chan struct{}, capacity),
		done:     make(chan struct{}),
	}
	r.fill()
	for i := 0; i < capacity; i++ {
		r.slots <- struct{}{}
	}
	go r.refillLoop()
	return r
}

func (r *Reservoir) fill() {
	for {
		select {
		case r.permits <- struct{}{}:
		default:
			return
		}
	}
}

// refillLoop tops the reservoir back up to capacity once per interval.
func (r *Reservoir) refillLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.fill()
		case <-r.done:
			return
		}
	}
}

// Schedule blocks until a window permit and an in-flight slot are
// available, then runs fn. The slot is released when fn returns; the
// window permit is only regenerated by the next refill burst.
func (r *Reservoir) Schedule(ctx context.Context, fn func() error) error {
	select {
	case <-r.slots:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrShutdown
	}
	defer func() { r.slots <- struct{}{} }()

	select {
	case <-r.permits:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrShutdown
	}

	return fn()
}

// Shutdown cancels pending schedules. Requests already inside fn run to
// completion.
func (r *Reservoir) Shutdown() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Registry hands out per-provider reservoirs plus the shared TMDB one.
// Obtaining an id with a changed rate swaps the reservoir atomically;
// waiters on the old one are cancelled, in-flight calls finish under the
// old limits.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*entry
}

type entry struct {
	rate      types.APIRate
	reservoir *Reservoir
}

// TMDBScope is the registry id of the global TMDB reservoir (45 requests
// per second).
const TMDBScope = "tmdb"

// TMDBRate is the fixed admission rate for the TMDB API.
var TMDBRate = types.APIRate{Concurrent: 45, DurationSeconds: 1}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*entry)}
}

// Obtain returns the reservoir for id, creating or swapping it when the
// configured rate changed.
func (g *Registry) Obtain(id string, rate types.APIRate) *Reservoir {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.limiters[id]; ok {
		if e.rate == rate {
			return e.reservoir
		}
		e.reservoir.Shutdown()
	}
	res := NewReservoir(rate)
	g.limiters[id] = &entry{rate: rate, reservoir: res}
	return res
}

// TMDB returns the shared TMDB reservoir.
func (g *Registry) TMDB() *Reservoir {
	return g.Obtain(TMDBScope, TMDBRate)
}

// Shutdown cancels every reservoir in the registry.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.limiters {
		e.reservoir.Shutdown()
	}
}

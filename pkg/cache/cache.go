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

// Package cache is the content-addressed file cache for upstream responses.
// Paths are a pure function of (scope, type, endpoint, params); freshness is
// the file mtime against a per-endpoint TTL. Writer races for the same key
// are tolerated, the last writer wins.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// Per-endpoint TTLs. TTLNever (zero) means the entry never expires.
const (
	TTLNever      time.Duration = 0
	TTLCategories               = time.Hour
	TTLMetadata                 = time.Hour
	TTLM3U8                     = 6 * time.Hour
	TTLExtendedTV               = 6 * time.Hour
	TTLTMDBSeason               = 6 * time.Hour
)

// Store is a disk cache rooted at a single directory.
type Store struct {
	root string
}

// NewStore creates a cache store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Read returns the cached bytes for path if present and fresh. A zero ttl
// never expires.
func (s *Store) Read(path string, ttl time.Duration) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if ttl > TTLNever && time.Since(info.ModTime()) > ttl {
		utils.DebugLog("Cache expired: %s (age %s)", path, time.Since(info.ModTime()))
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		utils.WarnLog("Cache read failed for %s: %v", path, err)
		return nil, false
	}
	return data, true
}

// WriteRaw persists bytes verbatim (M3U8 payloads).
func (s *Store) WriteRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return utils.PrintErrorAndReturn(err)
	}
	return os.WriteFile(path, data, 0644)
}

// WriteJSON persists a structured payload pretty-printed, so cached
// responses stay inspectable by hand.
func (s *Store) WriteJSON(path string, data []byte) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, data, "", "  "); err != nil {
		// Not valid JSON; store as-is rather than losing the payload.
		return s.WriteRaw(path, data)
	}
	return s.WriteRaw(path, indented.Bytes())
}

// FetchOptions configure a fetch-with-cache operation.
type FetchOptions struct {
	Path    string
	TTL     time.Duration
	Limiter *ratelimit.Reservoir

	// Transform, when set, is applied to the fetched bytes before they
	// are persisted and returned.
	Transform func([]byte) ([]byte, error)

	// Raw stores the payload verbatim instead of re-indenting it as JSON.
	Raw bool
}

// Fetch checks the cache, and on a miss runs fetch through the rate
// limiter, persists the result, and returns it. The second return value
// reports whether the bytes came from cache.
func (s *Store) Fetch(ctx context.Context, opts FetchOptions, fetch func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok := s.Read(opts.Path, opts.TTL); ok {
		return data, true, nil
	}

	var data []byte
	run := func() error {
		var err error
		data, err = fetch(ctx)
		return err
	}

	var err error
	if opts.Limiter != nil {
		err = opts.Limiter.Schedule(ctx, run)
	} else {
		err = run()
	}
	if err != nil {
		return nil, false, err
	}

	if opts.Transform != nil {
		data, err = opts.Transform(data)
		if err != nil {
			return nil, false, err
		}
	}

	if opts.Raw {
		err = s.WriteRaw(opts.Path, data)
	} else {
		err = s.WriteJSON(opts.Path, data)
	}
	if err != nil {
		// A failed cache write is not fatal; the payload is still good.
		utils.WarnLog("Cache write failed for %s: %v", opts.Path, err)
	}

	return data, false, nil
}

// Cleanup removes cache files older than retention. Entries with a "never"
// TTL are still subject to it so the cache cannot grow without bound.
func (s *Store) Cleanup(retention time.Duration) (int, error) {
	if s.root == "" {
		return 0, nil
	}
	removed := 0
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if time.Since(info.ModTime()) > retention {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if removed > 0 {
		utils.InfoLog("Cache cleanup removed %d expired files", removed)
	}
	return removed, err
}

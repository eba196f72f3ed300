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

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPathBuilders(t *testing.T) {
	s := NewStore("/var/cache/streamfed")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"categories", s.CategoriesPath("prov1", "movies"), "/var/cache/streamfed/prov1/categories/movies.json"},
		{"metadata", s.MetadataPath("prov1", "tvshows"), "/var/cache/streamfed/prov1/metadata/tvshows.json"},
		{"extended", s.ExtendedPath("prov1", "movies", "42"), "/var/cache/streamfed/prov1/extended/movies/42.json"},
		{"m3u8 first page", s.M3U8Path("prov2", "movies", 1), "/var/cache/streamfed/prov2/movies/metadata/list.m3u8"},
		{"m3u8 page 3", s.M3U8Path("prov2", "tvshows", 3), "/var/cache/streamfed/prov2/tvshows/metadata/list-3.m3u8"},
		{"tmdb search", s.TMDBPath("movie", "search", "the matrix-1999"), "/var/cache/streamfed/tmdb/movie/search/the matrix-1999.json"},
		{"tmdb imdb", s.TMDBPath("tv", "imdb", "tt0903747"), "/var/cache/streamfed/tmdb/tv/imdb/tt0903747.json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPathSanitization(t *testing.T) {
	s := NewStore("/root")
	p := s.ExtendedPath("p", "movies", "../../etc/passwd")
	if strings.Contains(p, "..") {
		t.Errorf("path traversal not sanitized: %q", p)
	}
	same := s.ExtendedPath("p", "movies", "../../etc/passwd")
	if p != same {
		t.Error("sanitized path is not deterministic")
	}
}

func TestReadMissAndHit(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.MetadataPath("p1", "movies")

	if _, ok := s.Read(path, TTLMetadata); ok {
		t.Fatal("read of absent file should miss")
	}

	if err := s.WriteJSON(path, []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	data, ok := s.Read(path, TTLMetadata)
	if !ok {
		t.Fatal("read of fresh file should hit")
	}
	if !strings.Contains(string(data), "\"a\": 1") {
		t.Errorf("structured payload not pretty-printed: %q", data)
	}
}

func TestReadTTLExpiry(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.MetadataPath("p1", "movies")
	if err := s.WriteRaw(path, []byte("x")); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Read(path, time.Hour); ok {
		t.Error("stale entry should miss")
	}
	if _, ok := s.Read(path, TTLNever); !ok {
		t.Error("zero TTL should never expire")
	}
}

func TestFetchUsesCacheOnSecondCall(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.CategoriesPath("p1", "movies")

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`[{"category_id":"1"}]`), nil
	}

	data, cached, err := s.Fetch(context.Background(), FetchOptions{Path: path, TTL: TTLCategories}, fetch)
	if err != nil || cached {
		t.Fatalf("first fetch: cached=%v err=%v", cached, err)
	}
	if !strings.Contains(string(data), "category_id") {
		t.Errorf("unexpected payload %q", data)
	}

	_, cached, err = s.Fetch(context.Background(), FetchOptions{Path: path, TTL: TTLCategories}, fetch)
	if err != nil || !cached {
		t.Fatalf("second fetch: cached=%v err=%v", cached, err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestFetchTransformAppliesBeforePersist(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.M3U8Path("p1", "movies", 1)

	fetch := func(context.Context) ([]byte, error) {
		return []byte("#EXTM3U\nraw"), nil
	}
	transform := func(b []byte) ([]byte, error) {
		return []byte(strings.ToUpper(string(b))), nil
	}

	data, _, err := s.Fetch(context.Background(), FetchOptions{Path: path, TTL: TTLM3U8, Raw: true, Transform: transform}, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "#EXTM3U\nRAW" {
		t.Errorf("transform not applied to returned payload: %q", data)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != "#EXTM3U\nRAW" {
		t.Errorf("transform not applied to persisted payload: %q", onDisk)
	}
}

func TestFetchErrorDoesNotPersist(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.CategoriesPath("p1", "movies")

	_, _, err := s.Fetch(context.Background(), FetchOptions{Path: path, TTL: TTLCategories},
		func(context.Context) ([]byte, error) { return nil, errors.New("boom") })
	if err == nil {
		t.Fatal("fetch error should propagate")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("failed fetch should not create a cache entry")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	fresh := filepath.Join(dir, "p1", "metadata", "movies.json")
	stale := filepath.Join(dir, "p1", "metadata", "tvshows.json")
	if err := s.WriteRaw(fresh, []byte("fresh")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteRaw(stale, []byte("stale")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Cleanup(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh entry should survive cleanup")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale entry should be removed")
	}
}

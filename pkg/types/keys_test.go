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

package types

import (
	"fmt"
	"testing"
)

func TestEpisodeKeyRoundTrip(t *testing.T) {
	for s := 1; s <= 99; s++ {
		for e := 1; e <= 99; e++ {
			key := EpisodeKey(s, e)
			gotS, gotE, ok := ParseEpisodeKey(key)
			if !ok {
				t.Fatalf("ParseEpisodeKey(%q) not ok", key)
			}
			if gotS != s || gotE != e {
				t.Fatalf("round trip (%d,%d) -> %q -> (%d,%d)", s, e, key, gotS, gotE)
			}
		}
	}
}

func TestEpisodeKeyFormat(t *testing.T) {
	if got := EpisodeKey(1, 2); got != "S01-E02" {
		t.Errorf("EpisodeKey(1,2) = %q, want S01-E02", got)
	}
	if got := EpisodeKey(12, 345); got != "S12-E345" {
		t.Errorf("EpisodeKey(12,345) = %q, want S12-E345", got)
	}
}

func TestParseEpisodeKeyRejects(t *testing.T) {
	for _, bad := range []string{"main", "S1-E2", "S01E02", "s01-e02", "", "S01-E0a"} {
		if _, _, ok := ParseEpisodeKey(bad); ok {
			t.Errorf("ParseEpisodeKey(%q) unexpectedly ok", bad)
		}
	}
}

func TestStreamID(t *testing.T) {
	if got := StreamID(TypeMovies, 0, 0); got != StreamIDMain {
		t.Errorf("StreamID(movies) = %q, want main", got)
	}
	if got := StreamID(TypeTVShows, 2, 3); got != "S02-E03" {
		t.Errorf("StreamID(tvshows,2,3) = %q, want S02-E03", got)
	}
}

func TestIsValidStreamID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"main", true},
		{"S01-E01", true},
		{"S99-E99", true},
		{"S1-E1", false},
		{"extra", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidStreamID(tt.id); got != tt.want {
			t.Errorf("IsValidStreamID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSplitTitleKey(t *testing.T) {
	tests := []struct {
		key      string
		wantType string
		wantID   string
		wantOK   bool
	}{
		{"movies-603", "movies", "603", true},
		{"tvshows-1396", "tvshows", "1396", true},
		{"tvshows-tt0903747", "tvshows", "tt0903747", true},
		{"live-1", "", "", false},
		{"movies-", "", "", false},
		{"603", "", "", false},
	}
	for _, tt := range tests {
		gotType, gotID, ok := SplitTitleKey(tt.key)
		if ok != tt.wantOK || gotType != tt.wantType || gotID != tt.wantID {
			t.Errorf("SplitTitleKey(%q) = (%q,%q,%v), want (%q,%q,%v)",
				tt.key, gotType, gotID, ok, tt.wantType, tt.wantID, tt.wantOK)
		}
	}
}

func TestSeriesStreamIDRoundTrip(t *testing.T) {
	cases := []struct {
		title   string
		season  int
		episode int
	}{
		{"1396", 1, 2},
		{"tt0903747", 5, 16},
		{"some-dashed-id", 10, 1},
	}
	for _, c := range cases {
		id := BuildSeriesStreamID(c.title, c.season, c.episode)
		gotTitle, gotS, gotE, ok := ParseSeriesStreamID(id)
		if !ok || gotTitle != c.title || gotS != c.season || gotE != c.episode {
			t.Errorf("round trip %v -> %q -> (%q,%d,%d,%v)", c, id, gotTitle, gotS, gotE, ok)
		}
	}
}

func TestParseSeriesStreamIDForms(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantS     int
		wantE     int
		wantOK    bool
	}{
		{"1396-1-2.mp4", "1396", 1, 2, true},
		{"tvshows-1396-1-2.mp4", "1396", 1, 2, true},
		{"tt0903747-5-16.mkv", "tt0903747", 5, 16, true},
		{"a-b-c-3-4", "a-b-c", 3, 4, true},
		{"1396", "", 0, 0, false},
		{"x-y", "", 0, 0, false},
		{"-1-2", "", 0, 0, false},
	}
	for _, tt := range tests {
		gotTitle, gotS, gotE, ok := ParseSeriesStreamID(tt.in)
		if ok != tt.wantOK || gotTitle != tt.wantTitle || gotS != tt.wantS || gotE != tt.wantE {
			t.Errorf("ParseSeriesStreamID(%q) = (%q,%d,%d,%v), want (%q,%d,%d,%v)",
				tt.in, gotTitle, gotS, gotE, ok, tt.wantTitle, tt.wantS, tt.wantE, tt.wantOK)
		}
	}
}

func TestParseStremioID(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantS     int
		wantE     int
		wantOK    bool
	}{
		{"603", "603", 0, 0, true},
		{"tt0111161", "tt0111161", 0, 0, true},
		{"1396-S01-E02", "1396", 1, 2, true},
		{"tt0903747-S05-E16", "tt0903747", 5, 16, true},
		{"tt0903747:1:2", "tt0903747", 1, 2, true},
		{"1396:5:16", "1396", 5, 16, true},
		{"tt0903747:1", "", 0, 0, false},
		{"tt0903747:a:2", "", 0, 0, false},
		{"", "", 0, 0, false},
	}
	for _, tt := range tests {
		gotTitle, gotS, gotE, ok := ParseStremioID(tt.in)
		if ok != tt.wantOK || gotTitle != tt.wantTitle || gotS != tt.wantS || gotE != tt.wantE {
			t.Errorf("ParseStremioID(%q) = (%q,%d,%d,%v), want (%q,%d,%d,%v)",
				tt.in, gotTitle, gotS, gotE, ok, tt.wantTitle, tt.wantS, tt.wantE, tt.wantOK)
		}
	}
}

func TestStremioEpisodeID(t *testing.T) {
	if got := StremioEpisodeID("1396", 1, 2); got != "1396-S01-E02" {
		t.Errorf("StremioEpisodeID = %q", got)
	}
}

func TestIsIMDBID(t *testing.T) {
	for _, yes := range []string{"tt0111161", "tt1"} {
		if !IsIMDBID(yes) {
			t.Errorf("IsIMDBID(%q) = false, want true", yes)
		}
	}
	for _, no := range []string{"0111161", "tt", "ttabc", "xtt123", ""} {
		if IsIMDBID(no) {
			t.Errorf("IsIMDBID(%q) = true, want false", no)
		}
	}
}

func TestProviderSortPriority(t *testing.T) {
	tests := []struct {
		priority int
		want     int
	}{
		{1, 1},
		{42, 42},
		{0, 999},
		{-5, 999},
	}
	for _, tt := range tests {
		p := Provider{Priority: tt.priority}
		if got := p.SortPriority(); got != tt.want {
			t.Errorf("SortPriority(%d) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}

func TestTitleRecordStreamKeys(t *testing.T) {
	r := TitleRecord{Streams: map[string]string{
		"S02-E01": "http://x/2/1",
		"S01-E02": "http://x/1/2",
		"S01-E01": "http://x/1/1",
	}}
	got := r.StreamKeys()
	want := []string{"S01-E01", "S01-E02", "S02-E01"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("StreamKeys() = %v, want %v", got, want)
	}
}

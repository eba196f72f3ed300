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

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

func newAGTVTestAdapter(t *testing.T, handler http.Handler) (*agtvAdapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	limiters := ratelimit.NewRegistry()
	t.Cleanup(limiters.Shutdown)

	p := &types.Provider{
		ID:      "agtv1",
		Type:    types.ProviderAGTV,
		Enabled: true,
		APIURL:  srv.URL,
		APIRate: types.APIRate{Concurrent: 5, DurationSeconds: 1},
	}
	a := newAGTVAdapter(p, Deps{
		Cache:    cache.NewStore(t.TempDir()),
		Limiters: limiters,
		HTTP:     srv.Client(),
	})
	return a, srv
}

func TestAGTVMoviesParse(t *testing.T) {
	playlist := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="tt0111161" tvg-name="The Shawshank Redemption" tvg-type="movies" group-title="Drama",The Shawshank Redemption` + "\n" +
		"http://x/movie/1.mp4\n"

	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movies.m3u8" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, playlist)
	}))

	records, err := a.ListTitles(context.Background(), types.TypeMovies)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.TitleID != "tt0111161" {
		t.Errorf("title id = %q", rec.TitleID)
	}
	if rec.Name != "The Shawshank Redemption" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.CategoryName != "Drama" {
		t.Errorf("category = %q", rec.CategoryName)
	}
	if rec.Streams[types.StreamIDMain] != "http://x/movie/1.mp4" {
		t.Errorf("main stream = %q", rec.Streams[types.StreamIDMain])
	}
}

func TestAGTVShowGrouping(t *testing.T) {
	playlist := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="tt0903747" tvg-name="Breaking Bad" group-title="Drama",Breaking Bad S01E01` + "\n" +
		"http://x/show/55/1/1\n" +
		`#EXTINF:-1 tvg-id="tt0903747" tvg-name="Breaking Bad" group-title="Drama",Breaking Bad S01E02` + "\n" +
		"http://x/show/55/1/2\n"

	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, playlist)
	}))

	records, err := a.ListTitles(context.Background(), types.TypeTVShows)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.TitleID != "tt0903747" || rec.Type != types.TypeTVShows {
		t.Errorf("record = %+v", rec)
	}
	want := map[string]string{
		"S01-E01": "http://x/show/55/1/1",
		"S01-E02": "http://x/show/55/1/2",
	}
	if len(rec.Streams) != len(want) {
		t.Fatalf("streams = %v", rec.Streams)
	}
	for k, v := range want {
		if rec.Streams[k] != v {
			t.Errorf("streams[%s] = %q, want %q", k, rec.Streams[k], v)
		}
	}
}

func TestAGTVPaginationStopsOnShortPage(t *testing.T) {
	entry := func(id, s, e int) string {
		return fmt.Sprintf("#EXTINF:-1 tvg-id=\"tt%07d\" tvg-name=\"Show %d\",Show %d\nhttp://x/show/%d/%d/%d\n", id, id, id, id, s, e)
	}

	var requested []string
	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.RequestURI())
		fmt.Fprint(w, "#EXTM3U\n")
		switch r.URL.Query().Get("page") {
		case "", "1":
			for i := 0; i < 3; i++ {
				fmt.Fprint(w, entry(i+1, 1, 1))
			}
		case "2":
			fmt.Fprint(w, entry(100, 1, 1))
		default:
			t.Errorf("unexpected page request %q", r.URL.RequestURI())
		}
	}))
	a.pageThreshold = 3

	records, err := a.ListTitles(context.Background(), types.TypeTVShows)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Errorf("records = %d, want 4", len(records))
	}
	if len(requested) != 2 {
		t.Errorf("requests = %v, want 2 pages", requested)
	}
}

func TestAGTVPaginationStopsOnMissingPage(t *testing.T) {
	entry := "#EXTINF:-1 tvg-id=\"tt0000001\" tvg-name=\"Show\",Show\nhttp://x/show/1/1/1\n"

	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "#EXTM3U\n"+entry)
	}))
	a.pageThreshold = 1

	records, err := a.ListTitles(context.Background(), types.TypeTVShows)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestAGTVFirstPageErrorPropagates(t *testing.T) {
	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := a.ListTitles(context.Background(), types.TypeTVShows)
	if err == nil {
		t.Fatal("missing first page must fail the listing")
	}
}

func TestAGTVListCategories(t *testing.T) {
	playlist := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="tt1" group-title="Drama",A` + "\nhttp://x/m/1.mp4\n" +
		`#EXTINF:-1 tvg-id="tt2" group-title="Action",B` + "\nhttp://x/m/2.mp4\n" +
		`#EXTINF:-1 tvg-id="tt3" group-title="Drama",C` + "\nhttp://x/m/3.mp4\n"

	a, _ := newAGTVTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, playlist)
	}))

	cats, err := a.ListCategories(context.Background(), types.TypeMovies)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0].Name != "Action" || cats[1].Name != "Drama" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestParseEpisodePath(t *testing.T) {
	tests := []struct {
		url     string
		season  int
		episode int
		ok      bool
	}{
		{"http://x/show/55/1/2", 1, 2, true},
		{"http://x/show/55/10/25.mp4", 10, 25, true},
		{"http://x/show/55/season/2", 0, 0, false},
		{"http://x/file.mp4", 0, 0, false},
		{"http://x/show/0/1", 0, 0, false},
	}
	for _, tt := range tests {
		s, e, ok := parseEpisodePath(tt.url)
		if ok != tt.ok || s != tt.season || e != tt.episode {
			t.Errorf("parseEpisodePath(%q) = (%d,%d,%v), want (%d,%d,%v)", tt.url, s, e, ok, tt.season, tt.episode, tt.ok)
		}
	}
}

func TestJoinPlaylistPagesKeepsSingleHeader(t *testing.T) {
	joined := joinPlaylistPages([]string{
		"#EXTM3U\n#EXTINF:-1 tvg-id=\"a\",A\nhttp://x/1\n",
		"#EXTM3U\n#EXTINF:-1 tvg-id=\"b\",B\nhttp://x/2\n",
	})
	if strings.Count(joined, "#EXTM3U") != 1 {
		t.Errorf("joined playlist should keep one header:\n%s", joined)
	}
	if strings.Count(joined, "#EXTINF:") != 2 {
		t.Errorf("joined playlist should keep all entries:\n%s", joined)
	}
}

func TestEXTINFAttributeParsing(t *testing.T) {
	e := parseEXTINF(`#EXTINF:-1 tvg-id="tt1" tvg-name="Name, The" group-title="Sci-Fi",Name, The`)
	if e.attrs["tvg-id"] != "tt1" {
		t.Errorf("tvg-id = %q", e.attrs["tvg-id"])
	}
	if e.attrs["tvg-name"] != "Name, The" {
		t.Errorf("quoted comma mangled: %q", e.attrs["tvg-name"])
	}
	if e.attrs["group-title"] != "Sci-Fi" {
		t.Errorf("group-title = %q", e.attrs["group-title"])
	}
	if e.title != "Name, The" {
		t.Errorf("title = %q", e.title)
	}
}

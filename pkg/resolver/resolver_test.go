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

package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

type fakeSourceStore struct {
	sources []database.StreamSource
}

func (f *fakeSourceStore) GetStreamSources(string, string) ([]database.StreamSource, error) {
	return f.sources, nil
}

func source(providerID, providerType, proxyURL string, streamsURLs ...string) database.StreamSource {
	return database.StreamSource{
		TitleStream: types.TitleStream{
			TitleKey:   "tvshows-55",
			StreamID:   "S02-E03",
			ProviderID: providerID,
			ProxyURL:   proxyURL,
		},
		Provider: types.Provider{
			ID:          providerID,
			Type:        providerType,
			Enabled:     true,
			StreamsURLs: streamsURLs,
		},
	}
}

func TestResolverPrefersFirstReachable(t *testing.T) {
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stream data"))
	}))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stream data"))
	}))
	defer b.Close()

	store := &fakeSourceStore{sources: []database.StreamSource{
		source("a", types.ProviderXtream, "/s/55/2/3.mp4", a.URL),
		source("b", types.ProviderXtream, "/s/55/2/3.mp4", b.URL),
	}}

	url, err := New(store).GetBestSource(context.Background(), types.TypeTVShows, "55", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if url != a.URL+"/s/55/2/3.mp4" {
		t.Errorf("url = %q, want the priority-1 provider", url)
	}
}

func TestResolverFallsBackToNextProvider(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dead.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stream data"))
	}))
	defer alive.Close()

	store := &fakeSourceStore{sources: []database.StreamSource{
		source("a", types.ProviderXtream, "/s/55/2/3.mp4", dead.URL),
		source("b", types.ProviderXtream, "/s/55/2/3.mp4", alive.URL),
	}}

	url, err := New(store).GetBestSource(context.Background(), types.TypeTVShows, "55", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if url != alive.URL+"/s/55/2/3.mp4" {
		t.Errorf("url = %q, want the fallback provider", url)
	}
}

func TestResolverAllDead(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	store := &fakeSourceStore{sources: []database.StreamSource{
		source("a", types.ProviderXtream, "/s/55/2/3.mp4", dead.URL),
	}}

	_, err := New(store).GetBestSource(context.Background(), types.TypeTVShows, "55", 2, 3)
	if err != types.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolverNoSources(t *testing.T) {
	_, err := New(&fakeSourceStore{}).GetBestSource(context.Background(), types.TypeMovies, "603", 0, 0)
	if err != types.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolverAbsoluteURLBypassesExpansion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("playlist providers must probe with HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeSourceStore{sources: []database.StreamSource{
		source("agtv1", types.ProviderAGTV, srv.URL+"/movie/1.mp4"),
	}}

	url, err := New(store).GetBestSource(context.Background(), types.TypeMovies, "tt0111161", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if url != srv.URL+"/movie/1.mp4" {
		t.Errorf("url = %q", url)
	}
}

func TestResolverRotatesStreamsURLs(t *testing.T) {
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stream data"))
	}))
	defer alive.Close()

	// First base is unresolvable, second answers.
	store := &fakeSourceStore{sources: []database.StreamSource{
		source("a", types.ProviderXtream, "/s/55/2/3.mp4", "http://127.0.0.1:1", alive.URL),
	}}

	url, err := New(store).GetBestSource(context.Background(), types.TypeTVShows, "55", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if url != alive.URL+"/s/55/2/3.mp4" {
		t.Errorf("url = %q, want the second base", url)
	}
}

func TestExpandCandidates(t *testing.T) {
	rel := source("p", types.ProviderXtream, "/path/1.mp4", "https://a/", "https://b")
	got := expandCandidates(&rel)
	if len(got) != 2 || got[0] != "https://a/path/1.mp4" || got[1] != "https://b/path/1.mp4" {
		t.Errorf("candidates = %v", got)
	}

	abs := source("p", types.ProviderAGTV, "https://x/movie.mp4", "https://ignored")
	got = expandCandidates(&abs)
	if len(got) != 1 || got[0] != "https://x/movie.mp4" {
		t.Errorf("candidates = %v", got)
	}

	fallback := source("p", types.ProviderXtream, "/path/1.mp4")
	fallback.Provider.APIURL = "https://api"
	got = expandCandidates(&fallback)
	if len(got) != 1 || got[0] != "https://api/path/1.mp4" {
		t.Errorf("candidates = %v", got)
	}

	// Nothing to expand against: the stored path is still probed as-is.
	bare := source("p", types.ProviderXtream, "/path/1.mp4")
	got = expandCandidates(&bare)
	if len(got) != 1 || got[0] != "/path/1.mp4" {
		t.Errorf("candidates = %v", got)
	}
}

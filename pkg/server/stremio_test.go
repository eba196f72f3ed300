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

package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/config"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

func TestStremioManifest(t *testing.T) {
	_, _, _, router := newTestServer(t)

	w := do(router, http.MethodGet, "/stremio/key-alice/manifest.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var manifest struct {
		ID        string   `json:"id"`
		Resources []string `json:"resources"`
		Catalogs  []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"catalogs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &manifest); err != nil {
		t.Fatal(err)
	}
	if manifest.ID == "" || len(manifest.Resources) != 3 || len(manifest.Catalogs) != 2 {
		t.Errorf("manifest = %+v", manifest)
	}
}

func TestStremioRejectsUnknownKey(t *testing.T) {
	_, _, _, router := newTestServer(t)

	w := do(router, http.MethodGet, "/stremio/bogus/manifest.json")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestStremioCatalogSearch(t *testing.T) {
	_, store, _, router := newTestServer(t)
	store.addTitle(&types.Title{TitleKey: "movies-603", TitleID: "603", Type: types.TypeMovies, Title: "The Matrix"})
	store.addTitle(&types.Title{TitleKey: "movies-604", TitleID: "604", Type: types.TypeMovies, Title: "Something Else"})

	w := do(router, http.MethodGet, "/stremio/key-alice/catalog/movie/streamfed-movies/search=matrix.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Metas []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"metas"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Metas) != 1 || body.Metas[0].ID != "603" || body.Metas[0].Type != "movie" {
		t.Errorf("metas = %+v", body.Metas)
	}
}

func TestStremioMetaSeriesVideos(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	store.users["alice"] = &types.User{Username: "alice", APIKey: "key-alice"}
	store.addTitle(&types.Title{
		TitleKey: "tvshows-1396", TitleID: "1396", Type: types.TypeTVShows,
		Title: "Breaking Bad",
		Streams: map[string]types.EpisodeMeta{
			"S01-E01": {},
			"S01-E02": {Name: "Cat's in the Bag..."},
		},
	})

	seasons := &fakeSeasons{details: &tmdb.SeasonDetails{
		SeasonNumber: 1,
		Episodes: []tmdb.Episode{
			{SeasonNumber: 1, EpisodeNumber: 1, Name: "Pilot", AirDate: "2008-01-20"},
		},
	}}
	s := NewServer(&config.GatewayConfig{}, store, &fakeResolver{}, nil, seasons)
	router := gin.New()
	s.routes(router)

	w := do(router, http.MethodGet, "/stremio/key-alice/meta/series/1396.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Meta struct {
			Videos []struct {
				ID      string `json:"id"`
				Title   string `json:"title"`
				Season  int    `json:"season"`
				Episode int    `json:"episode"`
			} `json:"videos"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Meta.Videos) != 2 {
		t.Fatalf("videos = %+v", body.Meta.Videos)
	}
	if body.Meta.Videos[0].ID != "1396-S01-E01" || body.Meta.Videos[0].Title != "Pilot" {
		t.Errorf("enriched video = %+v", body.Meta.Videos[0])
	}
	// The stored name wins; no second TMDB call needed for the season.
	if body.Meta.Videos[1].Title != "Cat's in the Bag..." {
		t.Errorf("video 2 = %+v", body.Meta.Videos[1])
	}
	if seasons.calls != 1 {
		t.Errorf("season lookups = %d, want 1", seasons.calls)
	}
}

func TestStremioStreamColonForm(t *testing.T) {
	_, store, res, router := newTestServer(t)
	store.addTitle(&types.Title{
		TitleKey: "tvshows-1396", TitleID: "1396", Type: types.TypeTVShows,
		Title: "Breaking Bad", IMDBID: "tt0903747",
	})
	res.urls["tvshows-1396/S01-E02"] = "https://up.example/bb/1/2.mp4"

	w := do(router, http.MethodGet, "/stremio/key-alice/stream/series/tt0903747:1:2.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Streams []struct {
			URL string `json:"url"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Streams) != 1 || body.Streams[0].URL != "https://up.example/bb/1/2.mp4" {
		t.Errorf("streams = %+v", body.Streams)
	}
}

func TestStremioStreamNoSource(t *testing.T) {
	_, store, _, router := newTestServer(t)
	store.addTitle(&types.Title{TitleKey: "movies-603", TitleID: "603", Type: types.TypeMovies, Title: "The Matrix"})

	w := do(router, http.MethodGet, "/stremio/key-alice/stream/movie/603.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Streams []interface{} `json:"streams"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Streams) != 0 {
		t.Errorf("streams = %+v", body.Streams)
	}
}

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
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const stremioCatalogPageSize = 100

// stremioType maps Stremio's content types to inventory types.
func stremioType(t string) (string, bool) {
	switch t {
	case "movie":
		return types.TypeMovies, true
	case "series":
		return types.TypeTVShows, true
	}
	return "", false
}

func trimJSONSuffix(s string) string {
	return strings.TrimSuffix(s, ".json")
}

// stremioManifest describes the add-on to the Stremio client.
func (s *Server) stremioManifest(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"id":          "org.streamfed.addon",
		"version":     "1.0.0",
		"name":        "streamfed",
		"description": "Federated IPTV catalog",
		"resources":   []string{"catalog", "meta", "stream"},
		"types":       []string{"movie", "series"},
		"catalogs": []gin.H{
			{
				"type":  "movie",
				"id":    "streamfed-movies",
				"name":  "streamfed movies",
				"extra": []gin.H{{"name": "search"}, {"name": "skip"}},
			},
			{
				"type":  "series",
				"id":    "streamfed-series",
				"name":  "streamfed series",
				"extra": []gin.H{{"name": "search"}, {"name": "skip"}},
			},
		},
	})
}

// stremioCatalog lists (optionally searched, paged) titles as Stremio metas.
func (s *Server) stremioCatalog(ctx *gin.Context) {
	contentType, ok := stremioType(ctx.Param("type"))
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	search, skip := parseStremioExtra(trimJSONSuffix(ctx.Param("extra")))
	titles, err := s.store.ListTitles(contentType, search, stremioCatalogPageSize, skip)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	metas := make([]gin.H, 0, len(titles))
	for i := range titles {
		metas = append(metas, s.stremioMetaPreview(&titles[i], ctx.Param("type")))
	}
	ctx.JSON(http.StatusOK, gin.H{"metas": metas})
}

// parseStremioExtra splits the catalog extra segment ("search=x&skip=100").
func parseStremioExtra(extra string) (search string, skip int) {
	for _, part := range strings.Split(extra, "&") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "search":
			search = kv[1]
		case "skip":
			skip, _ = strconv.Atoi(kv[1])
		}
	}
	return search, skip
}

func (s *Server) stremioMetaPreview(t *types.Title, stremioKind string) gin.H {
	return gin.H{
		"id":          t.TitleID,
		"type":        stremioKind,
		"name":        t.Title,
		"poster":      tmdbImage(t.PosterPath),
		"description": t.Overview,
		"releaseInfo": releaseYear(t.ReleaseDate),
		"imdbRating":  fmt.Sprintf("%.1f", t.VoteAverage),
		"genres":      t.Genres,
	}
}

// lookupTitle resolves a Stremio content id, which is either our canonical
// TMDB id or an IMDB id from a foreign catalog.
func (s *Server) lookupTitle(contentType, id string) (*types.Title, error) {
	if types.IsIMDBID(id) {
		return s.store.GetTitleByIMDB(contentType, id)
	}
	return s.store.GetTitleByKey(types.TitleKey(contentType, id))
}

// stremioMeta serves the full meta object, with per-episode videos for
// series. Missing episode names are backfilled from TMDB season lookups.
func (s *Server) stremioMeta(ctx *gin.Context) {
	contentType, ok := stremioType(ctx.Param("type"))
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	title, err := s.lookupTitle(contentType, trimJSONSuffix(ctx.Param("id")))
	if err != nil {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	meta := s.stremioMetaPreview(title, ctx.Param("type"))
	meta["background"] = tmdbImage(title.BackdropPath)

	if contentType == types.TypeTVShows {
		meta["videos"] = s.stremioVideos(ctx, title)
	}
	ctx.JSON(http.StatusOK, gin.H{"meta": meta})
}

// stremioVideos flattens the embedded episode map into Stremio video
// entries, enriching seasons whose episode names never made it into the
// inventory.
func (s *Server) stremioVideos(ctx *gin.Context, title *types.Title) []gin.H {
	enriched := map[int]map[int]types.EpisodeMeta{}

	videos := make([]gin.H, 0, len(title.Streams))
	for _, streamID := range sortedStreamIDs(title.Streams) {
		season, episode, ok := types.ParseEpisodeKey(streamID)
		if !ok {
			continue
		}
		meta := title.Streams[streamID]
		if meta.Name == "" {
			meta = s.enrichEpisode(ctx, title, season, episode, enriched)
		}

		name := meta.Name
		if name == "" {
			name = fmt.Sprintf("Episode %d", episode)
		}
		videos = append(videos, gin.H{
			"id":        types.StremioEpisodeID(title.TitleID, season, episode),
			"title":     name,
			"season":    season,
			"episode":   episode,
			"overview":  meta.Overview,
			"released":  meta.AirDate,
			"thumbnail": tmdbImage(meta.StillPath),
		})
	}
	return videos
}

// enrichEpisode lazily pulls one TMDB season per show and caches it for
// the duration of the request.
func (s *Server) enrichEpisode(ctx *gin.Context, title *types.Title, season, episode int, cache map[int]map[int]types.EpisodeMeta) types.EpisodeMeta {
	if s.seasons == nil {
		return types.EpisodeMeta{}
	}

	byEpisode, ok := cache[season]
	if !ok {
		byEpisode = map[int]types.EpisodeMeta{}
		cache[season] = byEpisode

		tmdbID, err := strconv.Atoi(title.TitleID)
		if err != nil {
			return types.EpisodeMeta{}
		}
		details, err := s.seasons.Season(ctx.Request.Context(), tmdbID, season)
		if err != nil {
			utils.DebugLog("Season enrichment failed for %s S%02d: %v", title.TitleKey, season, err)
			return types.EpisodeMeta{}
		}
		for _, ep := range details.Episodes {
			byEpisode[ep.EpisodeNumber] = types.EpisodeMeta{
				Name:      ep.Name,
				Overview:  ep.Overview,
				AirDate:   ep.AirDate,
				StillPath: ep.StillPath,
			}
		}
	}
	return byEpisode[episode]
}

// stremioStream resolves one Stremio playback request to a redirectable
// URL list.
func (s *Server) stremioStream(ctx *gin.Context) {
	contentType, ok := stremioType(ctx.Param("type"))
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	titleID, season, episode, ok := types.ParseStremioID(trimJSONSuffix(ctx.Param("id")))
	if !ok {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	// Foreign catalogs address content by IMDB id; map it back to ours.
	if types.IsIMDBID(titleID) {
		title, err := s.lookupTitle(contentType, titleID)
		if err != nil {
			ctx.JSON(http.StatusOK, gin.H{"streams": []gin.H{}})
			return
		}
		titleID = title.TitleID
	}

	url, err := s.resolver.GetBestSource(ctx.Request.Context(), contentType, titleID, season, episode)
	if err != nil || url == "" {
		if err != nil && err != types.ErrNotFound {
			utils.ErrorLog("Stremio stream resolution failed for %s %s: %v", contentType, titleID, err)
		}
		ctx.JSON(http.StatusOK, gin.H{"streams": []gin.H{}})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"streams": []gin.H{
			{"name": "streamfed", "title": "Play", "url": url},
		},
	})
}

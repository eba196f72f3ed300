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
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// catalogLimit bounds how many titles one player_api listing returns.
const catalogLimit = 50000

const tmdbImageBase = "https://image.tmdb.org/t/p/w500"

// tmdbImage turns a TMDB-relative poster path into an absolute URL.
func tmdbImage(path string) string {
	if path == "" {
		return ""
	}
	return tmdbImageBase + path
}

// xtreamPlayerAPI dispatches player_api.php actions over the federated
// inventory. Categories are projected from TMDB genres.
func (s *Server) xtreamPlayerAPI(ctx *gin.Context) {
	action := ctx.Request.FormValue("action")
	utils.DebugLog("player_api action=%q from %s", action, ctx.ClientIP())

	switch action {
	case "":
		s.xtreamAuthResponse(ctx)
	case "get_vod_categories":
		s.xtreamCategories(ctx, types.TypeMovies)
	case "get_series_categories":
		s.xtreamCategories(ctx, types.TypeTVShows)
	case "get_vod_streams":
		s.xtreamVODStreams(ctx)
	case "get_series":
		s.xtreamSeries(ctx)
	case "get_vod_info":
		s.xtreamVODInfo(ctx)
	case "get_series_info":
		s.xtreamSeriesInfo(ctx)
	default:
		utils.DebugLog("Unsupported player_api action: %s", action)
		ctx.JSON(http.StatusOK, []interface{}{})
	}
}

// xtreamAuthResponse answers the bare credential check every Xtream client
// performs before browsing.
func (s *Server) xtreamAuthResponse(ctx *gin.Context) {
	user := currentUser(ctx)
	now := time.Now().Unix()

	ctx.JSON(http.StatusOK, gin.H{
		"user_info": gin.H{
			"username":        user.Username,
			"password":        user.APIKey,
			"auth":            1,
			"status":          "Active",
			"exp_date":        "",
			"is_trial":        "0",
			"active_cons":     "0",
			"max_connections": "1",
			"created_at":      strconv.FormatInt(user.CreatedAt.Unix(), 10),
			"allowed_output_formats": []string{"mp4"},
		},
		"server_info": gin.H{
			"url":             s.publicBase(),
			"server_protocol": "http",
			"timezone":        "UTC",
			"timestamp_now":   now,
			"time_now":        time.Now().UTC().Format("2006-01-02 15:04:05"),
		},
	})
}

// xtreamCategories projects the distinct genre names of one content type
// as Xtream categories. The genre name doubles as the category id.
func (s *Server) xtreamCategories(ctx *gin.Context, contentType string) {
	titles, err := s.store.ListTitles(contentType, "", catalogLimit, 0)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	seen := map[string]bool{}
	for _, t := range titles {
		for _, g := range t.Genres {
			if g != "" {
				seen[g] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for g := range seen {
		names = append(names, g)
	}
	sort.Strings(names)

	out := make([]gin.H, 0, len(names))
	for _, g := range names {
		out = append(out, gin.H{
			"category_id":   g,
			"category_name": g,
			"parent_id":     0,
		})
	}
	ctx.JSON(http.StatusOK, out)
}

func primaryGenre(t *types.Title) string {
	if len(t.Genres) > 0 {
		return t.Genres[0]
	}
	return ""
}

func releaseYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

// xtreamVODStreams lists the movie catalog. The Xtream stream_id is the
// canonical title id (the TMDB id).
func (s *Server) xtreamVODStreams(ctx *gin.Context) {
	titles, err := s.store.ListTitles(types.TypeMovies, "", catalogLimit, 0)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	categoryID := ctx.Request.FormValue("category_id")
	out := make([]gin.H, 0, len(titles))
	num := 0
	for i := range titles {
		t := &titles[i]
		if categoryID != "" && primaryGenre(t) != categoryID {
			continue
		}
		num++
		out = append(out, gin.H{
			"num":                 num,
			"name":                t.Title,
			"stream_type":         "movie",
			"stream_id":           t.TitleID,
			"stream_icon":         tmdbImage(t.PosterPath),
			"rating":              fmt.Sprintf("%.1f", t.VoteAverage),
			"rating_5based":       t.VoteAverage / 2,
			"category_id":         primaryGenre(t),
			"container_extension": "mp4",
			"added":               strconv.FormatInt(t.LastUpdated.Unix(), 10),
			"direct_source":       "",
		})
	}
	ctx.JSON(http.StatusOK, out)
}

// xtreamSeries lists the TV catalog. series_id is the canonical title id.
func (s *Server) xtreamSeries(ctx *gin.Context) {
	titles, err := s.store.ListTitles(types.TypeTVShows, "", catalogLimit, 0)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	categoryID := ctx.Request.FormValue("category_id")
	out := make([]gin.H, 0, len(titles))
	num := 0
	for i := range titles {
		t := &titles[i]
		if categoryID != "" && primaryGenre(t) != categoryID {
			continue
		}
		num++
		out = append(out, gin.H{
			"num":           num,
			"name":          t.Title,
			"series_id":     t.TitleID,
			"cover":         tmdbImage(t.PosterPath),
			"plot":          t.Overview,
			"genre":         primaryGenre(t),
			"releaseDate":   t.ReleaseDate,
			"rating":        fmt.Sprintf("%.1f", t.VoteAverage),
			"rating_5based": t.VoteAverage / 2,
			"category_id":   primaryGenre(t),
			"last_modified": strconv.FormatInt(t.LastUpdated.Unix(), 10),
		})
	}
	ctx.JSON(http.StatusOK, out)
}

// xtreamVODInfo answers get_vod_info for one movie.
func (s *Server) xtreamVODInfo(ctx *gin.Context) {
	vodID := ctx.Request.FormValue("vod_id")
	if vodID == "" {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	title, err := s.store.GetTitleByKey(types.TitleKey(types.TypeMovies, vodID))
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"info": gin.H{}, "movie_data": gin.H{}})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"info": gin.H{
			"name":           title.Title,
			"tmdb_id":        title.TitleID,
			"releasedate":    title.ReleaseDate,
			"plot":           title.Overview,
			"rating":         fmt.Sprintf("%.1f", title.VoteAverage),
			"duration_secs":  title.Runtime * 60,
			"genre":          primaryGenre(title),
			"movie_image":    tmdbImage(title.PosterPath),
			"backdrop_path":  []string{tmdbImage(title.BackdropPath)},
			"imdb_id":        title.IMDBID,
		},
		"movie_data": gin.H{
			"stream_id":           title.TitleID,
			"name":                title.Title,
			"container_extension": "mp4",
			"added":               strconv.FormatInt(title.LastUpdated.Unix(), 10),
		},
	})
}

// xtreamSeriesInfo answers get_series_info, rebuilding the season/episode
// layout from the title's embedded episode map.
func (s *Server) xtreamSeriesInfo(ctx *gin.Context) {
	seriesID := ctx.Request.FormValue("series_id")
	if seriesID == "" {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	title, err := s.store.GetTitleByKey(types.TitleKey(types.TypeTVShows, seriesID))
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"info": gin.H{}, "episodes": gin.H{}})
		return
	}

	episodes := map[string][]gin.H{}
	seasons := map[int]bool{}
	for _, streamID := range sortedStreamIDs(title.Streams) {
		season, episode, ok := types.ParseEpisodeKey(streamID)
		if !ok {
			continue
		}
		seasons[season] = true
		meta := title.Streams[streamID]
		seasonKey := strconv.Itoa(season)
		episodes[seasonKey] = append(episodes[seasonKey], gin.H{
			"id":                  types.BuildSeriesStreamID(title.TitleID, season, episode),
			"episode_num":         episode,
			"season":              season,
			"title":               meta.Name,
			"container_extension": "mp4",
			"info": gin.H{
				"plot":         meta.Overview,
				"air_date":     meta.AirDate,
				"movie_image":  tmdbImage(meta.StillPath),
			},
		})
	}

	seasonList := make([]gin.H, 0, len(seasons))
	for _, n := range sortedInts(seasons) {
		seasonList = append(seasonList, gin.H{
			"season_number": n,
			"name":          fmt.Sprintf("Season %d", n),
		})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"seasons": seasonList,
		"info": gin.H{
			"name":          title.Title,
			"tmdb":          title.TitleID,
			"plot":          title.Overview,
			"genre":         primaryGenre(title),
			"releaseDate":   title.ReleaseDate,
			"rating":        fmt.Sprintf("%.1f", title.VoteAverage),
			"cover":         tmdbImage(title.PosterPath),
			"backdrop_path": []string{tmdbImage(title.BackdropPath)},
		},
		"episodes": episodes,
	})
}

func sortedStreamIDs(streams map[string]types.EpisodeMeta) []string {
	ids := make([]string, 0, len(streams))
	for id := range streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

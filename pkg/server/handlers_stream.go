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
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// resolveMovie handles GET /api/stream/movies/:id with a 302 to the first
// reachable upstream, or 503 when no provider answers.
func (s *Server) resolveMovie(ctx *gin.Context) {
	s.redirectToBestSource(ctx, types.TypeMovies, ctx.Param("id"), 0, 0)
}

// resolveEpisode handles GET /api/stream/tvshows/:id/:season/:episode.
func (s *Server) resolveEpisode(ctx *gin.Context) {
	season, err := strconv.Atoi(ctx.Param("season"))
	if err != nil {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	episode, err := strconv.Atoi(ctx.Param("episode"))
	if err != nil {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	s.redirectToBestSource(ctx, types.TypeTVShows, ctx.Param("id"), season, episode)
}

// xtreamStreamMovie handles /movie/:username/:password/:id playback paths.
// The id carries an optional container extension ("603.mp4").
func (s *Server) xtreamStreamMovie(ctx *gin.Context) {
	id := stripExtension(ctx.Param("id"))
	s.redirectToBestSource(ctx, types.TypeMovies, id, 0, 0)
}

// xtreamStreamSeries handles /series/:username/:password/:id where the id
// is the "{titleID}-{season}-{episode}[.ext]" series stream form.
func (s *Server) xtreamStreamSeries(ctx *gin.Context) {
	titleID, season, episode, ok := types.ParseSeriesStreamID(ctx.Param("id"))
	if !ok {
		utils.DebugLog("Malformed series stream id: %s", ctx.Param("id"))
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	s.redirectToBestSource(ctx, types.TypeTVShows, titleID, season, episode)
}

func (s *Server) redirectToBestSource(ctx *gin.Context, contentType, titleID string, season, episode int) {
	url, err := s.resolver.GetBestSource(ctx.Request.Context(), contentType, titleID, season, episode)
	if err != nil || url == "" {
		if err != nil && err != types.ErrNotFound {
			utils.ErrorLog("Stream resolution failed for %s %s: %v", contentType, titleID, err)
		}
		ctx.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	ctx.Redirect(http.StatusFound, url)
}

func stripExtension(id string) string {
	if dot := strings.LastIndex(id, "."); dot != -1 {
		return id[:dot]
	}
	return id
}

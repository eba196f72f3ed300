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

	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// APIResponse is the admin API envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondOK(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondError(ctx *gin.Context, status int, err error) {
	ctx.JSON(status, APIResponse{Success: false, Error: err.Error()})
}

// handleStatus reports inventory counts and in-flight jobs.
func (s *Server) handleStatus(ctx *gin.Context) {
	stats, err := s.store.GetInventoryStats()
	if err != nil && err != types.ErrNotFound {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}

	var running []string
	if s.jobs != nil {
		running = s.jobs.RunningJobs()
	}
	respondOK(ctx, gin.H{
		"stats":        stats,
		"running_jobs": running,
	})
}

// handleListTitles is the browse/search endpoint over the canonical
// inventory.
func (s *Server) handleListTitles(ctx *gin.Context) {
	contentType := ctx.Query("type")
	if contentType != "" && contentType != types.TypeMovies && contentType != types.TypeTVShows {
		ctx.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "unknown type"})
		return
	}
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))

	titles, err := s.store.ListTitles(contentType, ctx.Query("search"), limit, offset)
	if err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	respondOK(ctx, titles)
}

func (s *Server) handleListProviders(ctx *gin.Context) {
	providers, err := s.store.ListProviders()
	if err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	// Secrets never leave the admin API in the clear.
	for i := range providers {
		providers[i].Password = utils.MaskString(providers[i].Password)
	}
	respondOK(ctx, providers)
}

func (s *Server) handleSaveProvider(ctx *gin.Context) {
	var p types.Provider
	if err := ctx.BindJSON(&p); err != nil {
		return
	}
	if p.ID == "" || (p.Type != types.ProviderXtream && p.Type != types.ProviderAGTV) {
		ctx.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "provider needs an id and a known type"})
		return
	}
	if err := s.store.SaveProvider(&p); err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	utils.InfoLog("Provider %s (%s) saved", p.ID, p.Type)
	respondOK(ctx, gin.H{"id": p.ID})
}

func (s *Server) handleDeleteProvider(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := s.store.SoftDeleteProvider(id); err != nil {
		if err == types.ErrNotFound {
			respondError(ctx, http.StatusNotFound, err)
			return
		}
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	utils.InfoLog("Provider %s soft-deleted", id)
	respondOK(ctx, gin.H{"id": id})
}

func (s *Server) handleListUsers(ctx *gin.Context) {
	users, err := s.store.ListUsers()
	if err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	for i := range users {
		users[i].Password = ""
		users[i].APIKey = utils.MaskString(users[i].APIKey)
	}
	respondOK(ctx, users)
}

func (s *Server) handleCreateUser(ctx *gin.Context) {
	var u types.User
	if err := ctx.BindJSON(&u); err != nil {
		return
	}
	if u.Username == "" {
		ctx.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "username is required"})
		return
	}
	if err := s.store.CreateUser(&u); err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	// The key is shown once, at creation.
	respondOK(ctx, gin.H{"username": u.Username, "api_key": u.APIKey})
}

func (s *Server) handleRotateAPIKey(ctx *gin.Context) {
	username := ctx.Param("username")
	key, err := s.store.RotateAPIKey(username)
	if err != nil {
		if err == types.ErrNotFound {
			respondError(ctx, http.StatusNotFound, err)
			return
		}
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	respondOK(ctx, gin.H{"username": username, "api_key": key})
}

func (s *Server) handleDeleteUser(ctx *gin.Context) {
	username := ctx.Param("username")
	if err := s.store.DeleteUser(username); err != nil {
		if err == types.ErrNotFound {
			respondError(ctx, http.StatusNotFound, err)
			return
		}
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	respondOK(ctx, gin.H{"username": username})
}

func (s *Server) handleListJobs(ctx *gin.Context) {
	jobs, err := s.store.ListJobHistory()
	if err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	respondOK(ctx, jobs)
}

// handleRunJob triggers a scheduled job immediately. Singleton and gating
// violations map to 409.
func (s *Server) handleRunJob(ctx *gin.Context) {
	if s.jobs == nil {
		ctx.JSON(http.StatusServiceUnavailable, APIResponse{Success: false, Error: "scheduler not running"})
		return
	}

	name := ctx.Param("name")
	err := s.jobs.RunJob(ctx.Request.Context(), name)
	switch {
	case err == nil:
		respondOK(ctx, gin.H{"job": name})
	case err == types.ErrNotFound:
		respondError(ctx, http.StatusNotFound, err)
	case err == types.ErrAlreadyRunning || types.IsBlocked(err):
		respondError(ctx, http.StatusConflict, err)
	default:
		respondError(ctx, http.StatusInternalServerError, err)
	}
}

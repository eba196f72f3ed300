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

// Package server is the HTTP edge: stream resolution endpoints, the
// Xtream-compatible re-export, the Stremio add-on, and the admin API.
package server

import (
	"context"
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vaxvhbe/streamfed/pkg/config"
	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// Store is the inventory access the edge needs, implemented by
// *database.DBManager.
type Store interface {
	GetUserByUsername(username string) (*types.User, error)
	GetUserByAPIKey(apiKey string) (*types.User, error)
	CreateUser(u *types.User) error
	RotateAPIKey(username string) (string, error)
	ListUsers() ([]types.User, error)
	DeleteUser(username string) error

	ListTitles(contentType, search string, limit, offset int) ([]types.Title, error)
	GetTitleByKey(titleKey string) (*types.Title, error)
	GetTitleByIMDB(contentType, imdbID string) (*types.Title, error)

	ListProviders() ([]types.Provider, error)
	GetProvider(id string) (*types.Provider, error)
	SaveProvider(p *types.Provider) error
	SoftDeleteProvider(id string) error

	ListJobHistory() ([]types.JobHistory, error)
	GetInventoryStats() (*database.InventoryStats, error)
}

// StreamResolver resolves one playback request to a live upstream URL,
// implemented by *resolver.Resolver.
type StreamResolver interface {
	GetBestSource(ctx context.Context, contentType, titleID string, season, episode int) (string, error)
}

// JobRunner triggers scheduled jobs on demand, implemented by
// *scheduler.Scheduler.
type JobRunner interface {
	RunJob(ctx context.Context, name string) error
	RunningJobs() []string
}

// SeasonSource fetches per-season episode metadata for the Stremio meta
// endpoint, implemented by *tmdb.Client.
type SeasonSource interface {
	Season(ctx context.Context, tmdbID, season int) (*tmdb.SeasonDetails, error)
}

// Server wires the HTTP edge over the inventory, resolver and scheduler.
type Server struct {
	cfg      *config.GatewayConfig
	store    Store
	resolver StreamResolver
	jobs     JobRunner
	seasons  SeasonSource
}

// NewServer builds the edge. jobs and seasons may be nil; the matching
// endpoints then answer 503 / skip enrichment.
func NewServer(cfg *config.GatewayConfig, store Store, res StreamResolver, jobs JobRunner, seasons SeasonSource) *Server {
	cfg.Normalize()
	return &Server{
		cfg:      cfg,
		store:    store,
		resolver: res,
		jobs:     jobs,
		seasons:  seasons,
	}
}

// Serve runs the gin engine until the listener fails.
func (s *Server) Serve() error {
	utils.InfoLog("[streamfed] Server is starting...")

	router := gin.Default()
	router.Use(cors.Default())

	s.routes(router)

	addr := s.cfg.HostConfig.ListenAddr()
	utils.InfoLog("[streamfed] Server is ready and listening on %s", addr)
	return router.Run(addr)
}

func (s *Server) routes(router *gin.Engine) {
	// Resolution endpoints consumed by generic players.
	router.GET("/api/stream/movies/:id", s.resolveMovie)
	router.GET("/api/stream/tvshows/:id/:season/:episode", s.resolveEpisode)

	// Admin API, guarded by the internal key.
	api := router.Group("/api", s.apiKeyAuth())
	api.GET("/status", s.handleStatus)
	api.GET("/titles", s.handleListTitles)
	api.GET("/providers", s.handleListProviders)
	api.POST("/providers", s.handleSaveProvider)
	api.DELETE("/providers/:id", s.handleDeleteProvider)
	api.GET("/users", s.handleListUsers)
	api.POST("/users", s.handleCreateUser)
	api.POST("/users/:username/rotate", s.handleRotateAPIKey)
	api.DELETE("/users/:username", s.handleDeleteUser)
	api.GET("/jobs", s.handleListJobs)
	api.POST("/jobs/:name/run", s.handleRunJob)

	// Xtream-compatible surface.
	router.GET("/player_api.php", s.authenticate, s.xtreamPlayerAPI)
	router.POST("/player_api.php", s.authenticate, s.xtreamPlayerAPI)
	router.GET("/get.php", s.authenticate, s.getM3U)
	router.POST("/get.php", s.authenticate, s.getM3U)
	router.GET("/movie/:username/:password/:id", s.authWithPathCredentials(), s.xtreamStreamMovie)
	router.GET("/series/:username/:password/:id", s.authWithPathCredentials(), s.xtreamStreamSeries)

	// Stremio add-on; the api key rides in the path.
	stremio := router.Group("/stremio/:apikey", s.stremioAuth())
	stremio.GET("/manifest.json", s.stremioManifest)
	stremio.GET("/catalog/:type/:id", s.stremioCatalog)
	stremio.GET("/catalog/:type/:id/:extra", s.stremioCatalog)
	stremio.GET("/meta/:type/:id", s.stremioMeta)
	stremio.GET("/stream/:type/:id", s.stremioStream)
}

// publicBase returns the externally visible base URL for shaping playlist
// and Xtream responses.
func (s *Server) publicBase() string {
	return s.cfg.PublicURL
}

func (s *Server) streamURL(kind, username, apiKey, streamID, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", s.publicBase(), kind, username, apiKey, streamID, ext)
}

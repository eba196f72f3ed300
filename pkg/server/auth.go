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
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

var internalAPIKey string

func init() {
	// Admin key comes from the environment or is generated per boot.
	envKey := os.Getenv("INTERNAL_API_KEY")
	if envKey != "" {
		internalAPIKey = envKey
		utils.InfoLog("Using internal API key from environment")
	} else {
		internalAPIKey = uuid.New().String()
		utils.InfoLog("Generated new internal API key: %s", internalAPIKey)
	}
}

// GetAPIKey returns the internal admin API key.
func GetAPIKey() string {
	return internalAPIKey
}

// apiKeyAuth guards the admin API with the internal key.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.GetHeader("X-API-Key")
		if key != internalAPIKey {
			utils.DebugLog("API authentication failed - invalid key: %s", utils.MaskString(key))
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, APIResponse{
				Success: false,
				Error:   "Invalid API key",
			})
			return
		}
		ctx.Next()
	}
}

// authRequest represents credentials supplied via form/query params. The
// password parameter carries the user's api_key, matching Xtream client
// expectations.
type authRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// authenticate validates form/query credentials against the users table.
// Used by player_api.php and get.php.
func (s *Server) authenticate(ctx *gin.Context) {
	utils.DebugLog("-> Incoming URL: %s", ctx.Request.URL)
	var authReq authRequest
	if err := ctx.Bind(&authReq); err != nil {
		utils.DebugLog("Bind error: %v", err)
		ctx.AbortWithError(http.StatusBadRequest, err) // nolint: errcheck
		return
	}

	user, err := s.checkCredentials(authReq.Username, authReq.Password)
	if err != nil {
		utils.DebugLog("Authentication failed for user: %s", authReq.Username)
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("user", user)
}

// authWithPathCredentials validates /movie and /series playback paths where
// the credentials ride in the URL.
func (s *Server) authWithPathCredentials() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username := ctx.Param("username")
		password := ctx.Param("password")
		utils.DebugLog("Path credentials auth check: username=%s, IP=%s", username, ctx.ClientIP())

		user, err := s.checkCredentials(username, password)
		if err != nil {
			utils.DebugLog("Path authentication failed for user: %s", username)
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.Set("user", user)
		ctx.Next()
	}
}

// stremioAuth validates the api key embedded in Stremio add-on URLs.
func (s *Server) stremioAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		apiKey := ctx.Param("apikey")
		user, err := s.store.GetUserByAPIKey(apiKey)
		if err != nil {
			utils.DebugLog("Stremio authentication failed - invalid key: %s", utils.MaskString(apiKey))
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		ctx.Set("user", user)
		ctx.Next()
	}
}

// checkCredentials resolves a (username, api_key) pair to a user. The
// api_key plays the password role on every public surface; the stored
// password is never accepted here.
func (s *Server) checkCredentials(username, apiKey string) (*types.User, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user.APIKey == "" || user.APIKey != apiKey {
		return nil, types.ErrNotFound
	}
	return user, nil
}

// currentUser returns the authenticated user stashed by the middleware.
func currentUser(ctx *gin.Context) *types.User {
	if v, ok := ctx.Get("user"); ok {
		if user, ok := v.(*types.User); ok {
			return user
		}
	}
	return nil
}

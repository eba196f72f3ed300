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

package config

import "fmt"

// CredentialString is a string whose value must never be printed verbatim.
type CredentialString string

// String implements fmt.Stringer
func (s CredentialString) String() string {
	return string(s)
}

// MarshalText masks the credential whenever it is serialized for display.
func (s CredentialString) MarshalText() ([]byte, error) {
	if len(s) == 0 {
		return []byte(""), nil
	}
	return []byte("********"), nil
}

// HostConfiguration holds the listen address of the HTTP edge.
type HostConfiguration struct {
	Hostname string
	Port     int
}

// ListenAddr returns the host:port string for the HTTP server.
func (h *HostConfiguration) ListenAddr() string {
	return fmt.Sprintf("%s:%d", h.Hostname, h.Port)
}

// GatewayConfig is the root runtime configuration, populated by the cobra
// root command from viper (flags, env, optional config file).
type GatewayConfig struct {
	HostConfig *HostConfiguration

	// PublicURL is the externally visible base URL of the gateway, used
	// when shaping Xtream and Stremio responses. Defaults to the listen
	// address when empty.
	PublicURL string

	// CacheFolder is the root of the on-disk upstream response cache.
	CacheFolder string

	// TMDBAPIKey seeds the TMDB client; the settings store overrides it
	// at runtime when a key has been configured there.
	TMDBAPIKey CredentialString

	// SyncOnStartup runs the providers-sync job shortly after boot
	// instead of waiting for the first interval.
	SyncOnStartup bool

	// MetadataBatchSizes control how many processed titles are
	// accumulated before a bulk flush, per provider type.
	XtreamBatchSize int
	AGTVBatchSize   int
}

// Defaults applied when flags and env leave fields unset.
const (
	DefaultPort            = 8080
	DefaultXtreamBatchSize = 100
	DefaultAGTVBatchSize   = 500
)

// Normalize fills zero values with defaults.
func (c *GatewayConfig) Normalize() {
	if c.HostConfig == nil {
		c.HostConfig = &HostConfiguration{Port: DefaultPort}
	}
	if c.HostConfig.Port == 0 {
		c.HostConfig.Port = DefaultPort
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.HostConfig.ListenAddr()
	}
	if c.XtreamBatchSize <= 0 {
		c.XtreamBatchSize = DefaultXtreamBatchSize
	}
	if c.AGTVBatchSize <= 0 {
		c.AGTVBatchSize = DefaultAGTVBatchSize
	}
}

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

package types

import (
	"sort"
	"time"
)

// Content types handled by the inventory. Every canonical title is one or
// the other; live TV is out of scope.
const (
	TypeMovies  = "movies"
	TypeTVShows = "tvshows"
)

// Provider driver kinds.
const (
	ProviderXtream = "xtream"
	ProviderAGTV   = "agtv"
)

// StreamIDMain is the stream discriminator used for movies. Episodes use
// the "Sxx-Exx" form built by EpisodeKey.
const StreamIDMain = "main"

// EpisodeMeta is per-episode descriptive metadata embedded in a Title.
// It never carries URLs; playable locations live in TitleStream rows.
type EpisodeMeta struct {
	Name      string `json:"name,omitempty"`
	Overview  string `json:"overview,omitempty"`
	AirDate   string `json:"air_date,omitempty"`
	StillPath string `json:"still_path,omitempty"`
}

// Title is the canonical, deduplicated representation of a piece of
// content. TitleKey ("{type}-{tmdbID}") uniquely identifies it; re-ingestion
// updates the row in place.
type Title struct {
	TitleKey     string                 `json:"title_key"`
	TitleID      string                 `json:"title_id"` // TMDB id
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	ReleaseDate  string                 `json:"release_date,omitempty"`
	Overview     string                 `json:"overview,omitempty"`
	VoteAverage  float64                `json:"vote_average,omitempty"`
	Genres       []string               `json:"genres,omitempty"`
	Runtime      int                    `json:"runtime,omitempty"`
	PosterPath   string                 `json:"poster_path,omitempty"`
	BackdropPath string                 `json:"backdrop_path,omitempty"`
	IMDBID       string                 `json:"imdb_id,omitempty"`
	Streams      map[string]EpisodeMeta `json:"streams,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastUpdated  time.Time              `json:"lastUpdated"`
}

// ProviderTitle is one provider's catalog entry for a title. It exists iff
// the provider currently advertises the title; soft-ignored rows persist so
// TMDB matching can be retried on a later run.
type ProviderTitle struct {
	ProviderID    string    `json:"provider_id"`
	TitleKey      string    `json:"title_key"`
	TitleID       string    `json:"title_id"` // provider-local id
	Type          string    `json:"type"`
	TMDBID        int       `json:"tmdb_id,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	ReleaseDate   string    `json:"release_date,omitempty"`
	Ignored       bool      `json:"ignored"`
	IgnoredReason string    `json:"ignored_reason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// TitleStream holds the actual playable location for one
// (title, stream, provider) triple. ProxyURL is either absolute or a
// relative path expanded against the provider's streams_urls at resolution
// time.
type TitleStream struct {
	TitleKey    string    `json:"title_key"`
	StreamID    string    `json:"stream_id"`
	ProviderID  string    `json:"provider_id"`
	ProxyURL    string    `json:"proxy_url"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// APIRate is the per-provider request admission configuration: at most
// Concurrent requests may begin in any window of DurationSeconds, with at
// most Concurrent in flight.
type APIRate struct {
	Concurrent      int `json:"concurrent"`
	DurationSeconds int `json:"duration_seconds"`
}

// Provider is an upstream content source configuration.
type Provider struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // xtream | agtv
	Enabled     bool      `json:"enabled"`
	Deleted     bool      `json:"deleted"`
	Priority    int       `json:"priority,omitempty"` // lower = preferred, 0 = unset
	APIURL      string    `json:"api_url"`
	Username    string    `json:"username,omitempty"`
	Password    string    `json:"password,omitempty"`
	StreamsURLs []string  `json:"streams_urls,omitempty"`
	APIRate     APIRate   `json:"api_rate"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SortPriority returns the effective ordering key: configured priorities
// ascending, unset priorities last.
func (p *Provider) SortPriority() int {
	if p.Priority <= 0 {
		return 999
	}
	return p.Priority
}

// SupportsType reports whether the provider serves the given content type.
// Both current drivers serve movies and tvshows.
func (p *Provider) SupportsType(contentType string) bool {
	return contentType == TypeMovies || contentType == TypeTVShows
}

// Job statuses persisted in job_history.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// JobHistory tracks the last execution of a named job, one row per
// (job_name, provider_id) pair. Any row left in "running" at process start
// is rewritten to "cancelled" by the scheduler.
type JobHistory struct {
	JobName        string     `json:"job_name"`
	ProviderID     string     `json:"provider_id,omitempty"`
	Status         string     `json:"status"`
	LastExecution  *time.Time `json:"last_execution,omitempty"`
	ExecutionCount int        `json:"execution_count"`
	LastResult     string     `json:"last_result,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastUpdated    time.Time  `json:"lastUpdated"`
}

// User is a downstream consumer of the re-export surfaces. The Xtream
// re-export authenticates with username + api_key (the api_key plays the
// password role); the Stremio add-on embeds the api_key in its URLs.
type User struct {
	Username    string    `json:"username"`
	Password    string    `json:"password,omitempty"`
	APIKey      string    `json:"api_key,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Category is a provider-side grouping of titles.
type Category struct {
	ID   string `json:"category_id"`
	Name string `json:"category_name"`
}

// TitleRecord is the normalized output of a provider adapter for a single
// catalog entry, before persistence. Streams maps stream ids
// ("main" or "Sxx-Exx") to upstream URLs or relative paths.
type TitleRecord struct {
	TitleID      string // provider-local id
	Name         string
	Type         string
	TMDBID       int
	IMDBID       string
	CategoryID   string
	CategoryName string
	ReleaseDate  string
	Modified     *time.Time // upstream modification instant, when advertised
	Streams      map[string]string
	Episodes     map[string]EpisodeMeta
}

// StreamKeys returns the sorted stream-id set of the record, used by the
// AGTV unchanged-show diff.
func (r *TitleRecord) StreamKeys() []string {
	keys := make([]string, 0, len(r.Streams))
	for k := range r.Streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

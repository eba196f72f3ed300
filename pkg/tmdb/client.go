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

// Package tmdb is the TMDB v3 API client used to match provider titles to
// canonical metadata. All lookups except Verify and Season are cached
// forever on disk; Season is cached for six hours. A single shared
// reservoir (45 requests / 1s) meters every call.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// MediaType maps an inventory content type to the TMDB path segment.
func MediaType(contentType string) string {
	if contentType == types.TypeTVShows {
		return "tv"
	}
	return "movie"
}

// Client talks to the TMDB v3 API. The API key is rotatable at runtime;
// calls with an unset key fail with a ConfigurationError.
type Client struct {
	baseURL string
	store   *cache.Store
	limiter *ratelimit.Reservoir
	http    *http.Client

	mu     sync.RWMutex
	apiKey string
}

// NewClient builds a TMDB client backed by the shared cache store and the
// registry's TMDB reservoir.
func NewClient(apiKey string, store *cache.Store, limiters *ratelimit.Registry) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		store:   store,
		limiter: limiters.TMDB(),
		http:    &http.Client{Timeout: 15 * time.Second},
		apiKey:  apiKey,
	}
}

// SetAPIKey swaps the bearer token; subsequent calls use the new key.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// get performs one authenticated TMDB request without caching.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	apiKey := c.key()
	if apiKey == "" {
		return nil, &types.ConfigurationError{Reason: "TMDB API key is not set"}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &types.UpstreamTransientError{Op: "tmdb " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, &types.UpstreamTransientError{Op: "tmdb " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &types.ConfigurationError{Reason: "TMDB API key rejected"}
	case resp.StatusCode >= 500:
		return nil, &types.UpstreamTransientError{Op: "tmdb " + path, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &types.UpstreamPermanentError{Op: "tmdb " + path, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return body, nil
}

// cached runs a TMDB request through the disk cache and the reservoir.
func (c *Client) cached(ctx context.Context, cachePath string, ttl time.Duration, path string, query url.Values) ([]byte, error) {
	data, _, err := c.store.Fetch(ctx, cache.FetchOptions{
		Path:    cachePath,
		TTL:     ttl,
		Limiter: c.limiter,
	}, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, path, query)
	})
	return data, err
}

// Result is a single search/find result.
type Result struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (r *Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

type searchResponse struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

type findResponse struct {
	MovieResults []Result `json:"movie_results"`
	TVResults    []Result `json:"tv_results"`
}

// Genre is a TMDB genre descriptor.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs carries the external references appended to TV details.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

// Details is the full metadata record for one movie or show.
type Details struct {
	ID             int         `json:"id"`
	Title          string      `json:"title"`
	Name           string      `json:"name"`
	ReleaseDate    string      `json:"release_date"`
	FirstAirDate   string      `json:"first_air_date"`
	Overview       string      `json:"overview"`
	VoteAverage    float64     `json:"vote_average"`
	Genres         []Genre     `json:"genres"`
	Runtime        int         `json:"runtime"`
	EpisodeRunTime []int       `json:"episode_run_time"`
	PosterPath     string      `json:"poster_path"`
	BackdropPath   string      `json:"backdrop_path"`
	IMDBID         string      `json:"imdb_id"`
	ExternalIDs    ExternalIDs `json:"external_ids"`
	NumberOfSeasons int        `json:"number_of_seasons"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (d *Details) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// EffectiveIMDBID returns the IMDB id for either media type.
func (d *Details) EffectiveIMDBID() string {
	if d.IMDBID != "" {
		return d.IMDBID
	}
	return d.ExternalIDs.IMDBID
}

// EffectiveReleaseDate returns the release date for either media type.
func (d *Details) EffectiveReleaseDate() string {
	if d.ReleaseDate != "" {
		return d.ReleaseDate
	}
	return d.FirstAirDate
}

// EffectiveRuntime returns the runtime in minutes for either media type.
func (d *Details) EffectiveRuntime() int {
	if d.Runtime > 0 {
		return d.Runtime
	}
	if len(d.EpisodeRunTime) > 0 {
		return d.EpisodeRunTime[0]
	}
	return 0
}

// GenreNames flattens the genre descriptors.
func (d *Details) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Episode is one episode descriptor inside a season.
type Episode struct {
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	StillPath     string `json:"still_path"`
}

// SeasonDetails is the TMDB season response.
type SeasonDetails struct {
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

// Verify checks that the configured API key is accepted. Never cached.
func (c *Client) Verify(ctx context.Context) error {
	err := c.limiter.Schedule(ctx, func() error {
		_, err := c.get(ctx, "/configuration", nil)
		return err
	})
	return err
}

// Search looks a title up by cleaned name and optional release year.
// Returns ErrNotFound when TMDB has no match. Cached forever.
func (c *Client) Search(ctx context.Context, contentType, title string, year int) (*Result, error) {
	media := MediaType(contentType)

	query := url.Values{}
	query.Set("query", title)
	cacheKey := strings.ToLower(title)
	if year > 0 {
		if media == "movie" {
			query.Set("year", strconv.Itoa(year))
		} else {
			query.Set("first_air_date_year", strconv.Itoa(year))
		}
		cacheKey = fmt.Sprintf("%s-%d", cacheKey, year)
	}

	data, err := c.cached(ctx, c.store.TMDBPath(media, "search", cacheKey), cache.TTLNever,
		"/search/"+media, query)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "tmdb search", Detail: err.Error()}
	}
	if len(parsed.Results) == 0 {
		return nil, types.ErrNotFound
	}
	return &parsed.Results[0], nil
}

// FindByIMDB resolves an IMDB id to a TMDB result of the requested type.
// Cached forever.
func (c *Client) FindByIMDB(ctx context.Context, imdbID, contentType string) (*Result, error) {
	media := MediaType(contentType)

	query := url.Values{}
	query.Set("external_source", "imdb_id")

	data, err := c.cached(ctx, c.store.TMDBPath(media, "imdb", imdbID), cache.TTLNever,
		"/find/"+url.PathEscape(imdbID), query)
	if err != nil {
		return nil, err
	}

	var parsed findResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "tmdb find", Detail: err.Error()}
	}

	results := parsed.MovieResults
	if media == "tv" {
		results = parsed.TVResults
	}
	if len(results) == 0 {
		return nil, types.ErrNotFound
	}
	return &results[0], nil
}

// Details fetches the full metadata record for a TMDB id. TV details
// include external ids so the IMDB id is available for both types.
// Cached forever.
func (c *Client) Details(ctx context.Context, contentType string, tmdbID int) (*Details, error) {
	media := MediaType(contentType)

	query := url.Values{}
	if media == "tv" {
		query.Set("append_to_response", "external_ids")
	}

	data, err := c.cached(ctx, c.store.TMDBPath(media, "details", strconv.Itoa(tmdbID)), cache.TTLNever,
		fmt.Sprintf("/%s/%d", media, tmdbID), query)
	if err != nil {
		return nil, err
	}

	var parsed Details
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "tmdb details", Detail: err.Error()}
	}
	return &parsed, nil
}

// Season fetches the episode list of one season. Cached for six hours so
// running shows pick up new episodes.
func (c *Client) Season(ctx context.Context, tmdbID, season int) (*SeasonDetails, error) {
	data, err := c.cached(ctx, c.store.TMDBPath("tv", "season", fmt.Sprintf("%d-%d", tmdbID, season)),
		cache.TTLTMDBSeason, fmt.Sprintf("/tv/%d/season/%d", tmdbID, season), nil)
	if err != nil {
		return nil, err
	}

	var parsed SeasonDetails
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "tmdb season", Detail: err.Error()}
	}
	return &parsed, nil
}

// Similar fetches one page of similar titles. Cached forever.
func (c *Client) Similar(ctx context.Context, contentType string, tmdbID, page int) ([]Result, error) {
	media := MediaType(contentType)
	if page <= 0 {
		page = 1
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	data, err := c.cached(ctx, c.store.TMDBPath(media, "similar", fmt.Sprintf("%d-%d", tmdbID, page)),
		cache.TTLNever, fmt.Sprintf("/%s/%d/similar", media, tmdbID), query)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "tmdb similar", Detail: err.Error()}
	}
	return parsed.Results, nil
}

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

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const defaultContainerExtension = "mp4"

// xtreamAdapter drives an Xtream-codes style panel through its single
// player_api.php endpoint.
type xtreamAdapter struct {
	provider *types.Provider
	store    *cache.Store
	limiters *ratelimit.Registry
	http     *http.Client
}

func newXtreamAdapter(p *types.Provider, deps Deps) *xtreamAdapter {
	return &xtreamAdapter{
		provider: p,
		store:    deps.Cache,
		limiters: deps.Limiters,
		http:     deps.httpClient(),
	}
}

func (a *xtreamAdapter) ProviderType() string { return types.ProviderXtream }

func (a *xtreamAdapter) limiter() *ratelimit.Reservoir {
	if a.limiters == nil {
		return nil
	}
	return a.limiters.Obtain(a.provider.ID, a.provider.APIRate)
}

// apiGet performs one player_api.php call. 5xx and transport failures are
// transient; 4xx is permanent (bad credentials or unsupported action).
func (a *xtreamAdapter) apiGet(ctx context.Context, action string, params url.Values) ([]byte, error) {
	q := url.Values{}
	q.Set("username", a.provider.Username)
	q.Set("password", a.provider.Password)
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	endpoint := strings.TrimRight(a.provider.APIURL, "/") + "/player_api.php?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &types.UpstreamPermanentError{Op: action, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, &types.UpstreamTransientError{Op: action, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, &types.UpstreamTransientError{Op: action, Err: fmt.Errorf("status %d from %s", resp.StatusCode, utils.MaskURL(endpoint))}
	case resp.StatusCode >= 400:
		return nil, &types.UpstreamPermanentError{Op: action, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, &types.UpstreamTransientError{Op: action, Err: err}
	}
	return body, nil
}

// xtreamCategory is one entry of get_vod_categories/get_series_categories.
type xtreamCategory struct {
	CategoryID   FlexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
}

func (a *xtreamAdapter) ListCategories(ctx context.Context, contentType string) ([]types.Category, error) {
	action := "get_vod_categories"
	if contentType == types.TypeTVShows {
		action = "get_series_categories"
	}

	data, _, err := a.store.Fetch(ctx, cache.FetchOptions{
		Path:    a.store.CategoriesPath(a.provider.ID, contentType),
		TTL:     cache.TTLCategories,
		Limiter: a.limiter(),
	}, func(ctx context.Context) ([]byte, error) {
		return a.apiGet(ctx, action, nil)
	})
	if err != nil {
		return nil, err
	}

	var raw []xtreamCategory
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &types.UpstreamPermanentError{Op: action, Detail: err.Error()}
	}
	out := make([]types.Category, 0, len(raw))
	for _, c := range raw {
		out = append(out, types.Category{ID: c.CategoryID.String(), Name: c.CategoryName})
	}
	return out, nil
}

// xtreamVOD is one entry of get_vod_streams.
type xtreamVOD struct {
	StreamID           FlexInt    `json:"stream_id"`
	Name               string     `json:"name"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	Added              FlexString `json:"added"`
	TMDBID             FlexInt    `json:"tmdb"`
}

// xtreamSeries is one entry of get_series.
type xtreamSeries struct {
	SeriesID     FlexInt    `json:"series_id"`
	Name         string     `json:"name"`
	CategoryID   FlexString `json:"category_id"`
	LastModified FlexString `json:"last_modified"`
	ReleaseDate  string     `json:"releaseDate"`
	TMDBID       FlexInt    `json:"tmdb"`
}

func (a *xtreamAdapter) ListTitles(ctx context.Context, contentType string) ([]types.TitleRecord, error) {
	action := "get_vod_streams"
	if contentType == types.TypeTVShows {
		action = "get_series"
	}

	data, _, err := a.store.Fetch(ctx, cache.FetchOptions{
		Path:    a.store.MetadataPath(a.provider.ID, contentType),
		TTL:     cache.TTLMetadata,
		Limiter: a.limiter(),
	}, func(ctx context.Context) ([]byte, error) {
		return a.apiGet(ctx, action, nil)
	})
	if err != nil {
		return nil, err
	}

	items, _, _, err := decodeItems(data)
	if err != nil {
		return nil, err
	}

	records := make([]types.TitleRecord, 0, len(items))
	for _, item := range items {
		var rec *types.TitleRecord
		if contentType == types.TypeMovies {
			rec = a.vodRecord(item)
		} else {
			rec = a.seriesRecord(item)
		}
		if rec == nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (a *xtreamAdapter) vodRecord(item json.RawMessage) *types.TitleRecord {
	var v xtreamVOD
	if err := json.Unmarshal(item, &v); err != nil || v.StreamID.Int() == 0 {
		utils.DebugLog("Provider %s: dropping unparseable vod entry: %v", a.provider.ID, err)
		return nil
	}
	id := strconv.Itoa(v.StreamID.Int())
	return &types.TitleRecord{
		TitleID:    id,
		Name:       v.Name,
		Type:       types.TypeMovies,
		TMDBID:     v.TMDBID.Int(),
		CategoryID: v.CategoryID.String(),
		Modified:   unixTime(v.Added.String()),
		Streams: map[string]string{
			types.StreamIDMain: a.streamPath("movie", id, v.ContainerExtension),
		},
	}
}

func (a *xtreamAdapter) seriesRecord(item json.RawMessage) *types.TitleRecord {
	var s xtreamSeries
	if err := json.Unmarshal(item, &s); err != nil || s.SeriesID.Int() == 0 {
		utils.DebugLog("Provider %s: dropping unparseable series entry: %v", a.provider.ID, err)
		return nil
	}
	return &types.TitleRecord{
		TitleID:     strconv.Itoa(s.SeriesID.Int()),
		Name:        s.Name,
		Type:        types.TypeTVShows,
		TMDBID:      s.TMDBID.Int(),
		CategoryID:  s.CategoryID.String(),
		ReleaseDate: s.ReleaseDate,
		Modified:    unixTime(s.LastModified.String()),
	}
}

// xtreamEpisode is one episode entry of get_series_info.
type xtreamEpisode struct {
	ID                 FlexString `json:"id"`
	EpisodeNum         FlexInt    `json:"episode_num"`
	Season             FlexInt    `json:"season"`
	Title              string     `json:"title"`
	ContainerExtension string     `json:"container_extension"`
	Info               struct {
		Overview    string     `json:"plot"`
		AirDate     string     `json:"air_date"`
		MovieImage  string     `json:"movie_image"`
		ReleaseDate FlexString `json:"releasedate"`
	} `json:"info"`
}

// xtreamVODInfo is the get_vod_info response.
type xtreamVODInfo struct {
	Info struct {
		TMDBID      FlexInt    `json:"tmdb_id"`
		ReleaseDate FlexString `json:"releasedate"`
		Name        string     `json:"name"`
	} `json:"info"`
	MovieData struct {
		StreamID           FlexInt    `json:"stream_id"`
		Name               string     `json:"name"`
		CategoryID         FlexString `json:"category_id"`
		ContainerExtension string     `json:"container_extension"`
		Added              FlexString `json:"added"`
	} `json:"movie_data"`
}

// xtreamSeriesInfo is the get_series_info response.
type xtreamSeriesInfo struct {
	Info struct {
		Name         string     `json:"name"`
		CategoryID   FlexString `json:"category_id"`
		ReleaseDate  string     `json:"releaseDate"`
		LastModified FlexString `json:"last_modified"`
		TMDBID       FlexInt    `json:"tmdb"`
	} `json:"info"`
	Episodes map[string][]xtreamEpisode `json:"episodes"`
}

func (a *xtreamAdapter) FetchTitleDetails(ctx context.Context, contentType, titleID string) (*types.TitleRecord, error) {
	action := "get_vod_info"
	idParam := "vod_id"
	ttl := cache.TTLNever
	if contentType == types.TypeTVShows {
		action = "get_series_info"
		idParam = "series_id"
		ttl = cache.TTLExtendedTV
	}

	params := url.Values{}
	params.Set(idParam, titleID)

	data, _, err := a.store.Fetch(ctx, cache.FetchOptions{
		Path:    a.store.ExtendedPath(a.provider.ID, contentType, titleID),
		TTL:     ttl,
		Limiter: a.limiter(),
	}, func(ctx context.Context) ([]byte, error) {
		return a.apiGet(ctx, action, params)
	})
	if err != nil {
		return nil, err
	}

	if contentType == types.TypeMovies {
		return a.vodDetails(titleID, data)
	}
	return a.seriesDetails(titleID, data)
}

func (a *xtreamAdapter) vodDetails(titleID string, data []byte) (*types.TitleRecord, error) {
	var info xtreamVODInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "get_vod_info", Detail: err.Error()}
	}
	rec := &types.TitleRecord{
		TitleID:     titleID,
		Name:        info.Info.Name,
		Type:        types.TypeMovies,
		TMDBID:      info.Info.TMDBID.Int(),
		CategoryID:  info.MovieData.CategoryID.String(),
		ReleaseDate: info.Info.ReleaseDate.String(),
		Modified:    unixTime(info.MovieData.Added.String()),
		Streams: map[string]string{
			types.StreamIDMain: a.streamPath("movie", titleID, info.MovieData.ContainerExtension),
		},
	}
	if rec.Name == "" {
		rec.Name = info.MovieData.Name
	}
	return rec, nil
}

func (a *xtreamAdapter) seriesDetails(titleID string, data []byte) (*types.TitleRecord, error) {
	var info xtreamSeriesInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &types.UpstreamPermanentError{Op: "get_series_info", Detail: err.Error()}
	}

	rec := &types.TitleRecord{
		TitleID:     titleID,
		Name:        info.Info.Name,
		Type:        types.TypeTVShows,
		TMDBID:      info.Info.TMDBID.Int(),
		CategoryID:  info.Info.CategoryID.String(),
		ReleaseDate: info.Info.ReleaseDate,
		Modified:    unixTime(info.Info.LastModified.String()),
		Streams:     map[string]string{},
		Episodes:    map[string]types.EpisodeMeta{},
	}

	// Seasons arrive as a map keyed by season number; the per-episode
	// season field is not always present, so the key is the fallback.
	for seasonKey, episodes := range info.Episodes {
		keySeason, _ := strconv.Atoi(seasonKey)
		for _, ep := range episodes {
			season := ep.Season.Int()
			if season == 0 {
				season = keySeason
			}
			if season <= 0 || ep.EpisodeNum.Int() <= 0 || ep.ID.String() == "" {
				continue
			}
			streamID := types.EpisodeKey(season, ep.EpisodeNum.Int())
			rec.Streams[streamID] = a.streamPath("series", ep.ID.String(), ep.ContainerExtension)
			rec.Episodes[streamID] = types.EpisodeMeta{
				Name:      ep.Title,
				Overview:  ep.Info.Overview,
				AirDate:   firstNonEmpty(ep.Info.AirDate, ep.Info.ReleaseDate.String()),
				StillPath: ep.Info.MovieImage,
			}
		}
	}
	return rec, nil
}

// streamPath builds the relative playback path stored in title_streams.
// Kept relative so streams_urls rotation stays possible at resolve time.
func (a *xtreamAdapter) streamPath(kind, id, ext string) string {
	if ext == "" {
		ext = defaultContainerExtension
	}
	return fmt.Sprintf("/%s/%s/%s/%s.%s", kind, a.provider.Username, a.provider.Password, id, ext)
}

func unixTime(s string) *time.Time {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// ErrPageNotFound is the end-of-pagination signal: the requested playlist
// page does not exist upstream. Callers compare with errors.Is instead of
// sniffing response text.
var ErrPageNotFound = errors.New("playlist page not found")

// agtvPageThreshold is the per-page entry count below which the playlist
// is considered complete and pagination stops.
const agtvPageThreshold = 500

// agtvAdapter drives a paged-M3U8 provider. Movies are a single page; TV
// shows paginate until a short page or a missing page.
type agtvAdapter struct {
	provider *types.Provider
	store    *cache.Store
	limiters *ratelimit.Registry
	http     *http.Client

	pageThreshold int
}

func newAGTVAdapter(p *types.Provider, deps Deps) *agtvAdapter {
	return &agtvAdapter{
		provider:      p,
		store:         deps.Cache,
		limiters:      deps.Limiters,
		http:          deps.httpClient(),
		pageThreshold: agtvPageThreshold,
	}
}

func (a *agtvAdapter) ProviderType() string { return types.ProviderAGTV }

func (a *agtvAdapter) limiter() *ratelimit.Reservoir {
	if a.limiters == nil {
		return nil
	}
	return a.limiters.Obtain(a.provider.ID, a.provider.APIRate)
}

// FetchM3U8 returns one raw playlist page, from cache when fresh. A 404
// maps to ErrPageNotFound and is never cached.
func (a *agtvAdapter) FetchM3U8(ctx context.Context, contentType string, page int) (string, error) {
	endpoint := strings.TrimRight(a.provider.APIURL, "/") + "/" + contentType + ".m3u8"
	if page > 1 {
		endpoint += "?page=" + strconv.Itoa(page)
	}

	data, _, err := a.store.Fetch(ctx, cache.FetchOptions{
		Path:    a.store.M3U8Path(a.provider.ID, contentType, page),
		TTL:     cache.TTLM3U8,
		Limiter: a.limiter(),
		Raw:     true,
	}, func(ctx context.Context) ([]byte, error) {
		return a.httpGet(ctx, endpoint)
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *agtvAdapter) httpGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &types.UpstreamPermanentError{Op: "fetch playlist", Detail: err.Error()}
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, &types.UpstreamTransientError{Op: "fetch playlist", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPageNotFound
	case resp.StatusCode >= 500:
		return nil, &types.UpstreamTransientError{Op: "fetch playlist", Err: fmt.Errorf("status %d from %s", resp.StatusCode, utils.MaskURL(endpoint))}
	case resp.StatusCode >= 400:
		return nil, &types.UpstreamPermanentError{Op: "fetch playlist", Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 256<<20))
}

// fetchPlaylist retrieves all pages for a type and joins them into one
// document. Movies are a single page. Pagination stops on a page holding
// fewer entries than the threshold, or on ErrPageNotFound past page 1.
func (a *agtvAdapter) fetchPlaylist(ctx context.Context, contentType string) (string, error) {
	var pages []string
	for page := 1; ; page++ {
		text, err := a.FetchM3U8(ctx, contentType, page)
		if err != nil {
			if page > 1 && errors.Is(err, ErrPageNotFound) {
				break
			}
			return "", err
		}
		pages = append(pages, text)

		if contentType == types.TypeMovies {
			break
		}
		if countEntries(text) < a.pageThreshold {
			break
		}
	}
	return joinPlaylistPages(pages), nil
}

func (a *agtvAdapter) ListTitles(ctx context.Context, contentType string) ([]types.TitleRecord, error) {
	playlist, err := a.fetchPlaylist(ctx, contentType)
	if err != nil {
		return nil, err
	}
	entries := parsePlaylist(playlist)

	if contentType == types.TypeMovies {
		return a.movieRecords(entries), nil
	}
	return a.showRecords(entries), nil
}

// movieRecords maps one playlist entry to one record with a single main
// stream.
func (a *agtvAdapter) movieRecords(entries []playlistEntry) []types.TitleRecord {
	records := make([]types.TitleRecord, 0, len(entries))
	for _, e := range entries {
		id := e.attrs["tvg-id"]
		if id == "" || e.url == "" {
			utils.DebugLog("Provider %s: dropping playlist entry without tvg-id or URL (%q)", a.provider.ID, e.title)
			continue
		}
		records = append(records, types.TitleRecord{
			TitleID:      id,
			Name:         firstNonEmpty(e.attrs["tvg-name"], e.title),
			Type:         types.TypeMovies,
			CategoryName: e.attrs["group-title"],
			Streams:      map[string]string{types.StreamIDMain: e.url},
		})
	}
	return records
}

// showRecords groups entries by tvg-id; each entry URL's last two path
// segments are the season and episode numbers.
func (a *agtvAdapter) showRecords(entries []playlistEntry) []types.TitleRecord {
	byID := map[string]*types.TitleRecord{}
	var order []string

	for _, e := range entries {
		id := e.attrs["tvg-id"]
		if id == "" || e.url == "" {
			continue
		}
		season, episode, ok := parseEpisodePath(e.url)
		if !ok {
			utils.DebugLog("Provider %s: cannot read season/episode from %s", a.provider.ID, utils.MaskURL(e.url))
			continue
		}

		rec, seen := byID[id]
		if !seen {
			rec = &types.TitleRecord{
				TitleID:      id,
				Name:         firstNonEmpty(e.attrs["tvg-name"], e.title),
				Type:         types.TypeTVShows,
				CategoryName: e.attrs["group-title"],
				Streams:      map[string]string{},
			}
			byID[id] = rec
			order = append(order, id)
		}
		rec.Streams[types.EpisodeKey(season, episode)] = e.url
	}

	records := make([]types.TitleRecord, 0, len(order))
	for _, id := range order {
		records = append(records, *byID[id])
	}
	return records
}

// ListCategories derives the category list from the playlist group-title
// attributes; the playlist is the provider's only catalog surface.
func (a *agtvAdapter) ListCategories(ctx context.Context, contentType string) ([]types.Category, error) {
	playlist, err := a.fetchPlaylist(ctx, contentType)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var names []string
	for _, e := range parsePlaylist(playlist) {
		name := e.attrs["group-title"]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.Category, 0, len(names))
	for _, name := range names {
		out = append(out, types.Category{ID: name, Name: name})
	}
	return out, nil
}

// FetchTitleDetails has no extended endpoint to call; the playlist entry
// already carries everything the provider knows.
func (a *agtvAdapter) FetchTitleDetails(ctx context.Context, contentType, titleID string) (*types.TitleRecord, error) {
	records, err := a.ListTitles(ctx, contentType)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].TitleID == titleID {
			return &records[i], nil
		}
	}
	return nil, types.ErrNotFound
}

// playlistEntry is one #EXTINF line paired with its stream URL.
type playlistEntry struct {
	attrs map[string]string
	title string
	url   string
}

var extinfAttrRe = regexp.MustCompile(`([a-zA-Z0-9-]+)="([^"]*)"`)

// parsePlaylist walks the document line by line: each #EXTINF carries the
// attributes and display title, the next non-comment line is the URL.
func parsePlaylist(text string) []playlistEntry {
	var entries []playlistEntry
	var pending *playlistEntry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			e := parseEXTINF(line)
			pending = &e
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending != nil {
			pending.url = line
			entries = append(entries, *pending)
			pending = nil
		}
	}
	return entries
}

func parseEXTINF(line string) playlistEntry {
	body := strings.TrimPrefix(line, "#EXTINF:")

	// The display title follows the last comma after the attribute list;
	// quoted attribute values may themselves contain commas.
	title := ""
	attrPart := body
	if i := strings.LastIndex(body, `",`); i != -1 {
		attrPart = body[:i+1]
		title = strings.TrimSpace(body[i+2:])
	} else if i := strings.Index(body, ","); i != -1 {
		attrPart = body[:i]
		title = strings.TrimSpace(body[i+1:])
	}

	attrs := map[string]string{}
	for _, m := range extinfAttrRe.FindAllStringSubmatch(attrPart, -1) {
		attrs[m[1]] = m[2]
	}
	return playlistEntry{attrs: attrs, title: title}
}

// parseEpisodePath reads the last two path segments of a stream URL as
// (season, episode). A trailing file extension on the episode segment is
// ignored.
func parseEpisodePath(raw string) (season, episode int, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, 0, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return 0, 0, false
	}

	last := segments[len(segments)-1]
	if dot := strings.LastIndex(last, "."); dot != -1 {
		last = last[:dot]
	}
	episode, err = strconv.Atoi(last)
	if err != nil {
		return 0, 0, false
	}
	season, err = strconv.Atoi(segments[len(segments)-2])
	if err != nil {
		return 0, 0, false
	}
	if season <= 0 || episode <= 0 {
		return 0, 0, false
	}
	return season, episode, true
}

func countEntries(text string) int {
	return strings.Count(text, "#EXTINF:")
}

// joinPlaylistPages concatenates pages into one document, keeping the
// #EXTM3U header only from the first page.
func joinPlaylistPages(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(pages[0], "\n"))
	for _, page := range pages[1:] {
		for _, line := range strings.Split(page, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "#EXTM3U") {
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString("\n")
			b.WriteString(strings.TrimRight(line, "\r"))
		}
	}
	b.WriteString("\n")
	return b.String()
}

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

// Package resolver picks a live upstream URL for a playback request,
// walking provider candidates in priority order with liveness probes.
package resolver

import (
	"context"
	"strings"

	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// SourceStore supplies the ordered candidate list for one stream.
type SourceStore interface {
	GetStreamSources(titleKey, streamID string) ([]database.StreamSource, error)
}

// Resolver selects the best playable URL across providers.
type Resolver struct {
	store  SourceStore
	prober Prober
}

// New builds a resolver over a source store.
func New(store SourceStore) *Resolver {
	return &Resolver{store: store, prober: NewHTTPProber()}
}

// GetBestSource resolves one playback request to a reachable upstream
// URL. Season and episode are ignored for movies. Returns ErrNotFound
// when no candidate answers its probe.
func (r *Resolver) GetBestSource(ctx context.Context, contentType, titleID string, season, episode int) (string, error) {
	streamID := types.StreamID(contentType, season, episode)
	titleKey := types.TitleKey(contentType, titleID)

	sources, err := r.store.GetStreamSources(titleKey, streamID)
	if err != nil {
		return "", err
	}
	if len(sources) == 0 {
		utils.DebugLog("No sources for %s %s", titleKey, streamID)
		return "", types.ErrNotFound
	}

	for _, src := range sources {
		for _, candidate := range expandCandidates(&src) {
			if r.prober.Probe(ctx, src.Provider.Type, candidate) {
				utils.DebugLog("Resolved %s %s via provider %s", titleKey, streamID, src.ProviderID)
				return candidate, nil
			}
			utils.WarnLog("Provider %s candidate unreachable for %s %s: %s",
				src.ProviderID, titleKey, streamID, utils.MaskURL(candidate))
		}
	}
	return "", types.ErrNotFound
}

// expandCandidates turns one stored location into absolute URLs. An
// absolute proxy_url stands alone; a relative path expands against the
// provider's streams_urls in order, falling back to the api_url when
// none are configured and to the bare path when there is no api_url
// either.
func expandCandidates(src *database.StreamSource) []string {
	proxyURL := src.ProxyURL
	if strings.HasPrefix(proxyURL, "http://") || strings.HasPrefix(proxyURL, "https://") {
		return []string{proxyURL}
	}

	bases := src.Provider.StreamsURLs
	if len(bases) == 0 {
		if src.Provider.APIURL == "" {
			// Last resort: probe the stored path as-is rather than
			// dropping the candidate.
			utils.WarnLog("Provider %s has no streams_urls or api_url; keeping bare path for %s",
				src.ProviderID, src.TitleKey)
			return []string{proxyURL}
		}
		utils.WarnLog("Provider %s has no streams_urls; falling back to api_url for %s",
			src.ProviderID, src.TitleKey)
		bases = []string{src.Provider.APIURL}
	}

	candidates := make([]string, 0, len(bases))
	for _, base := range bases {
		candidates = append(candidates, joinURL(base, proxyURL))
	}
	return candidates
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

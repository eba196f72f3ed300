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

// Package provider contains the pluggable upstream drivers. Each adapter
// fetches a provider's catalog through the shared disk cache and rate
// limiter and normalizes entries into types.TitleRecord.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

// Adapter is the common upstream driver contract.
type Adapter interface {
	// ListCategories returns the provider's category list for one type.
	ListCategories(ctx context.Context, contentType string) ([]types.Category, error)
	// ListTitles returns the provider's full normalized catalog for one type.
	ListTitles(ctx context.Context, contentType string) ([]types.TitleRecord, error)
	// FetchTitleDetails returns the extended record for one title.
	FetchTitleDetails(ctx context.Context, contentType, titleID string) (*types.TitleRecord, error)
	// ProviderType reports the driver kind ("xtream" or "agtv").
	ProviderType() string
}

// M3U8Fetcher is implemented by playlist-style adapters.
type M3U8Fetcher interface {
	// FetchM3U8 returns one raw playlist page. Page numbering starts at 1.
	FetchM3U8(ctx context.Context, contentType string, page int) (string, error)
}

// Deps are the shared collaborators threaded into every adapter.
type Deps struct {
	Cache    *cache.Store
	Limiters *ratelimit.Registry
	HTTP     *http.Client
}

func (d Deps) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// New constructs the adapter for a provider configuration.
func New(p *types.Provider, deps Deps) (Adapter, error) {
	switch p.Type {
	case types.ProviderXtream:
		return newXtreamAdapter(p, deps), nil
	case types.ProviderAGTV:
		return newAGTVAdapter(p, deps), nil
	default:
		return nil, &types.ConfigurationError{Reason: fmt.Sprintf("unknown provider type %q for provider %s", p.Type, p.ID)}
	}
}

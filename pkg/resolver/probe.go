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

package resolver

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

const (
	// probeTimeout bounds one liveness check; slower upstreams are as
	// good as dead for playback.
	probeTimeout = 7500 * time.Millisecond

	// maxProbeRedirects caps redirect chains on GET probes.
	maxProbeRedirects = 3

	// maxProbeBytes is how much body a GET probe reads to confirm the
	// stream actually serves data.
	maxProbeBytes = 100
)

// Prober checks whether a candidate URL is reachable.
type Prober interface {
	Probe(ctx context.Context, providerType, url string) bool
}

// HTTPProber probes with the strategy matching the provider driver:
// playlist providers answer HEAD cheaply, Xtream panels often reject
// HEAD so those get a short ranged GET instead.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber builds a prober with redirect-capped transport.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxProbeRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (p *HTTPProber) Probe(ctx context.Context, providerType, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if providerType == types.ProviderAGTV {
		return p.probeHEAD(ctx, url)
	}
	return p.probeGET(ctx, url)
}

func (p *HTTPProber) probeHEAD(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		utils.DebugLog("HEAD probe failed for %s: %v", utils.MaskURL(url), err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBytes))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *HTTPProber) probeGET(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		utils.DebugLog("GET probe failed for %s: %v", utils.MaskURL(url), err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false
	}

	// Status alone lies on panels that return 200 error pages for dead
	// streams; a few real bytes must arrive.
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBytes))
	if n == 0 && err != nil {
		utils.DebugLog("GET probe for %s returned no data: %v", utils.MaskURL(url), err)
		return false
	}
	return true
}

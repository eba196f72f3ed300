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
	"fmt"

	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// Matcher binds provider titles to TMDB entries.
type Matcher struct {
	tmdb *tmdb.Client
}

func NewMatcher(c *tmdb.Client) *Matcher {
	return &Matcher{tmdb: c}
}

// Match fills rec.TMDBID. An already-present id is kept as-is. IMDB-style
// provider ids go through find-by-IMDB, everything else through a search
// on the cleaned name and extracted year.
func (m *Matcher) Match(ctx context.Context, rec *types.TitleRecord) error {
	if rec.TMDBID != 0 {
		return nil
	}

	if types.IsIMDBID(rec.TitleID) {
		res, err := m.tmdb.FindByIMDB(ctx, rec.TitleID, rec.Type)
		if err != nil {
			return err
		}
		rec.TMDBID = res.ID
		rec.IMDBID = rec.TitleID
		return nil
	}

	name := utils.CleanTitleName(rec.Name)
	year := utils.ExtractYear(rec.Name)
	res, err := m.tmdb.Search(ctx, rec.Type, name, year)
	if err != nil {
		return err
	}
	rec.TMDBID = res.ID
	return nil
}

// IgnoreReason renders a match failure as the persisted ignored_reason,
// "<kind>: <detail>".
func IgnoreReason(err error) string {
	switch {
	case err == types.ErrNotFound:
		return "no-match: no TMDB result"
	case types.IsConfigurationError(err):
		return fmt.Sprintf("config: %v", err)
	case types.IsUpstreamTransient(err):
		return fmt.Sprintf("transient: %v", err)
	case types.IsUpstreamPermanent(err):
		return fmt.Sprintf("upstream: %v", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}

// ShouldSkip applies the per-driver change-detection policy for a title
// already present in the inventory. storedStreamKeys is the sorted stream
// id set currently persisted for the (title, provider) pair.
func ShouldSkip(providerType string, rec *types.TitleRecord, existing *types.ProviderTitle, storedStreamKeys []string) bool {
	if existing == nil {
		return false
	}
	// Soft-ignored rows are retried every run so a failed match can
	// recover once the key or the TMDB catalog changes.
	if existing.Ignored {
		return false
	}

	if rec.Type == types.TypeMovies {
		// No modification timestamp means the entry cannot have changed
		// in a detectable way.
		return rec.Modified == nil || !rec.Modified.After(existing.LastUpdated)
	}

	switch providerType {
	case types.ProviderXtream:
		return rec.Modified != nil && !rec.Modified.After(existing.LastUpdated)
	case types.ProviderAGTV:
		return equalKeySets(rec.StreamKeys(), storedStreamKeys)
	default:
		return false
	}
}

func equalKeySets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

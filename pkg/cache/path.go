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

package cache

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TMDBScope is the cache scope shared by all TMDB lookups.
const TMDBScope = "tmdb"

// CategoriesPath is the cached category list for one provider and type:
// {root}/{scope}/categories/{type}.json
func (s *Store) CategoriesPath(scope, contentType string) string {
	return filepath.Join(s.root, sanitize(scope), "categories", sanitize(contentType)+".json")
}

// MetadataPath is the cached title list for one provider and type:
// {root}/{scope}/metadata/{type}.json
func (s *Store) MetadataPath(scope, contentType string) string {
	return filepath.Join(s.root, sanitize(scope), "metadata", sanitize(contentType)+".json")
}

// ExtendedPath is the cached extended-info response for one title:
// {root}/{scope}/extended/{type}/{titleId}.json
func (s *Store) ExtendedPath(scope, contentType, titleID string) string {
	return filepath.Join(s.root, sanitize(scope), "extended", sanitize(contentType), sanitize(titleID)+".json")
}

// M3U8Path is the cached playlist page for one provider and type:
// {root}/{scope}/{type}/metadata/list.m3u8 for the first page,
// list-{page}.m3u8 for subsequent pages.
func (s *Store) M3U8Path(scope, contentType string, page int) string {
	name := "list.m3u8"
	if page > 1 {
		name = fmt.Sprintf("list-%d.m3u8", page)
	}
	return filepath.Join(s.root, sanitize(scope), sanitize(contentType), "metadata", name)
}

// TMDBPath is the cached TMDB lookup:
// {root}/tmdb/{movie|tv}/{search|imdb|details|season|similar}/{key}.json
func (s *Store) TMDBPath(mediaType, endpoint, key string) string {
	return filepath.Join(s.root, TMDBScope, sanitize(mediaType), sanitize(endpoint), sanitize(key)+".json")
}

// sanitize keeps cache keys filesystem-safe. Same id always maps to the
// same path.
func sanitize(id string) string {
	s := strings.ReplaceAll(id, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		s = "unknown"
	}
	return s
}

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
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	episodeKeyRe = regexp.MustCompile(`^S(\d{2})-E(\d{2})$`)
	imdbIDRe     = regexp.MustCompile(`^tt\d+$`)
	titleKeyRe   = regexp.MustCompile(`^(movies|tvshows)-(.+)$`)
)

// TitleKey builds the canonical title identifier "{type}-{titleID}".
func TitleKey(contentType, titleID string) string {
	return contentType + "-" + titleID
}

// SplitTitleKey splits a canonical title key into its type and title id.
// Returns ok=false when the key is not of the "{movies|tvshows}-{id}" form.
func SplitTitleKey(titleKey string) (contentType, titleID string, ok bool) {
	m := titleKeyRe.FindStringSubmatch(titleKey)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// EpisodeKey formats a (season, episode) pair as the zero-padded
// "Sxx-Exx" stream id.
func EpisodeKey(season, episode int) string {
	return fmt.Sprintf("S%02d-E%02d", season, episode)
}

// ParseEpisodeKey parses an "Sxx-Exx" stream id back into its season and
// episode numbers. Returns ok=false for anything else, including "main".
func ParseEpisodeKey(streamID string) (season, episode int, ok bool) {
	m := episodeKeyRe.FindStringSubmatch(streamID)
	if m == nil {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(m[1])
	episode, _ = strconv.Atoi(m[2])
	return season, episode, true
}

// StreamID returns the stream discriminator for a resolution request:
// "main" for movies, "Sxx-Exx" for episodes.
func StreamID(contentType string, season, episode int) string {
	if contentType == TypeMovies {
		return StreamIDMain
	}
	return EpisodeKey(season, episode)
}

// IsValidStreamID reports whether a persisted stream id is well formed.
func IsValidStreamID(streamID string) bool {
	if streamID == StreamIDMain {
		return true
	}
	return episodeKeyRe.MatchString(streamID)
}

// IsIMDBID reports whether a provider-local title id looks like an IMDB id
// ("tt" followed by digits), which selects TMDB find-by-IMDB matching.
func IsIMDBID(id string) bool {
	return imdbIDRe.MatchString(id)
}

// BuildSeriesStreamID builds the Xtream-style series stream id
// "{titleID}-{season}-{episode}" used in /series playback paths.
func BuildSeriesStreamID(titleID string, season, episode int) string {
	return fmt.Sprintf("%s-%d-%d", titleID, season, episode)
}

// ParseSeriesStreamID parses an Xtream series stream id back into
// (titleID, season, episode). It accepts both "tvshows-{t}-{s}-{e}[.ext]"
// and "{t}-{s}-{e}[.ext]"; the title id may itself contain dashes, so the
// last two dash-separated numeric segments are taken as season and episode.
func ParseSeriesStreamID(streamID string) (titleID string, season, episode int, ok bool) {
	id := streamID
	if dot := strings.LastIndex(id, "."); dot != -1 {
		id = id[:dot]
	}
	id = strings.TrimPrefix(id, TypeTVShows+"-")

	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return "", 0, 0, false
	}
	e, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, 0, false
	}
	s, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return "", 0, 0, false
	}
	titleID = strings.Join(parts[:len(parts)-2], "-")
	if titleID == "" {
		return "", 0, 0, false
	}
	return titleID, s, e, true
}

// StremioEpisodeID builds the Stremio video id "{titleID}-Sxx-Exx".
func StremioEpisodeID(titleID string, season, episode int) string {
	return titleID + "-" + EpisodeKey(season, episode)
}

// ParseStremioID parses a Stremio content id. Accepted forms:
//
//	"{id}-Sxx-Exx"  — our own episode id format
//	"{id}:{s}:{e}"  — Stremio's colon form (e.g. "tt0903747:1:2")
//	"{id}"          — bare movie id
//
// For movie-form ids season and episode are zero.
func ParseStremioID(raw string) (titleID string, season, episode int, ok bool) {
	if raw == "" {
		return "", 0, 0, false
	}

	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return "", 0, 0, false
		}
		s, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", 0, 0, false
		}
		e, err := strconv.Atoi(parts[2])
		if err != nil {
			return "", 0, 0, false
		}
		return parts[0], s, e, true
	}

	// Episode suffix form: the id itself may contain dashes, so only a
	// trailing "-Sxx-Exx" is split off.
	if i := strings.LastIndex(raw, "-S"); i > 0 {
		if s, e, epOK := ParseEpisodeKey(raw[i+1:]); epOK {
			return raw[:i], s, e, true
		}
	}

	return raw, 0, 0, true
}

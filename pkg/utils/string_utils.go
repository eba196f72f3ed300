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

package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// MaskString masks sensitive parts of strings for logging.
func MaskString(s string) string {
	if len(s) <= 8 {
		if len(s) <= 0 {
			return "[empty]"
		}
		return s[:1] + "******"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskURL masks the username/password path segments of stream URLs for
// logging (http://host/path/user/pass/id form).
func MaskURL(urlStr string) string {
	parts := strings.Split(urlStr, "/")
	if len(parts) >= 7 {
		parts[5] = MaskString(parts[5]) // Password
		parts[4] = MaskString(parts[4]) // Username
	}
	return strings.Join(parts, "/")
}

var (
	yearSuffixRe  = regexp.MustCompile(`\(?(19|20)\d{2}\)?\s*$`)
	qualityTagRe  = regexp.MustCompile(`(?i)\[?\b(4k|uhd|fhd|hd|sd|hevc|h\.?26[45]|x26[45]|multi(?:-sub)?|vostfr|dual)\b\]?`)
	whitespaceRe  = regexp.MustCompile(`\s{2,}`)
	leadingTagsRe = regexp.MustCompile(`^\s*(\[[^\]]*\]|\|[^|]*\|)\s*`)
)

// CleanTitleName strips well-known provider suffix markers (quality tags,
// language markers, trailing year) from a display name before metadata
// matching.
func CleanTitleName(name string) string {
	s := strings.TrimSpace(name)
	s = leadingTagsRe.ReplaceAllString(s, "")
	s = qualityTagRe.ReplaceAllString(s, "")
	s = yearSuffixRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " -:|")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractYear pulls a trailing release year out of a display name, e.g.
// "The Matrix (1999)" -> 1999. Returns 0 when no year is present.
func ExtractYear(name string) int {
	m := yearSuffixRe.FindString(strings.TrimSpace(name))
	if m == "" {
		return 0
	}
	m = strings.Trim(m, "() ")
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}

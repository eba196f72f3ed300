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

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInterval reads schedule intervals from configuration. Accepted
// forms: "500ms", "30s", "15m", "2h", "1d", or a bare number of
// milliseconds.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("interval must be positive: %q", raw)
		}
		return time.Duration(n) * time.Millisecond, nil
	}

	if strings.HasSuffix(s, "ms") {
		value, err := strconv.ParseInt(s[:len(s)-2], 10, 64)
		if err != nil || value <= 0 {
			return 0, fmt.Errorf("invalid interval %q", raw)
		}
		return time.Duration(value) * time.Millisecond, nil
	}

	unit := s[len(s)-1]
	value, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval %q", raw)
	}

	switch unit {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown interval unit %q in %q", string(unit), raw)
	}
}

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
	"bytes"
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

// Payload kinds recognized by decodeItems.
const (
	payloadArray = "array"
	payloadKeyed = "keyed"
)

// payloadKeys are the wrapper keys some panels put around list responses.
var payloadKeys = []string{"movie_data", "series_data"}

// decodeItems normalizes the two list-response shapes Xtream panels emit:
// a bare JSON array, or an object wrapping the array under "movie_data" or
// "series_data". Anything else is a permanent upstream error.
func decodeItems(data []byte) (items []json.RawMessage, kind string, key string, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", "", &types.UpstreamPermanentError{Op: "decode list", Detail: "empty response body"}
	}

	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", "", &types.UpstreamPermanentError{Op: "decode list", Detail: err.Error()}
		}
		return items, payloadArray, "", nil

	case '{':
		for _, k := range payloadKeys {
			value, dataType, _, getErr := jsonparser.Get(trimmed, k)
			if getErr != nil || dataType != jsonparser.Array {
				continue
			}
			if err := json.Unmarshal(value, &items); err != nil {
				return nil, "", "", &types.UpstreamPermanentError{Op: "decode list", Detail: err.Error()}
			}
			return items, payloadKeyed, k, nil
		}
		return nil, "", "", &types.UpstreamPermanentError{Op: "decode list", Detail: "object payload carries no movie_data/series_data array"}

	default:
		return nil, "", "", &types.UpstreamPermanentError{Op: "decode list", Detail: "response is neither array nor object"}
	}
}

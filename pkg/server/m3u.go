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

package server

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jamesnetherton/m3u"
	uuid "github.com/satori/go.uuid"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// m3uCacheTTL is how long a generated playlist file is reused before the
// catalog is re-projected.
const m3uCacheTTL = time.Hour

type m3uCacheMeta struct {
	path string
	at   time.Time
}

var m3uCache = map[string]m3uCacheMeta{}
var m3uCacheLock = sync.RWMutex{}

// getM3U serves get.php: the whole federated catalog as an M3U playlist
// whose URIs point back at this gateway's playback paths.
func (s *Server) getM3U(ctx *gin.Context) {
	user := currentUser(ctx)

	m3uCacheLock.RLock()
	meta, ok := m3uCache[user.Username]
	m3uCacheLock.RUnlock()

	if !ok || time.Since(meta.at) > m3uCacheTTL {
		playlist, err := s.generateM3U(user)
		if err != nil {
			utils.ErrorLog("M3U generation failed for %s: %v", user.Username, err)
			ctx.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if err := cacheM3U(playlist, user.Username); err != nil {
			utils.ErrorLog("M3U cache write failed: %v", err)
			ctx.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		m3uCacheLock.RLock()
		meta = m3uCache[user.Username]
		m3uCacheLock.RUnlock()
	}

	ctx.Header("Content-Disposition", `attachment; filename="streamfed.m3u"`)
	ctx.Header("Content-Type", "audio/x-mpegurl")
	ctx.File(meta.path)
}

// generateM3U projects the inventory into playlist tracks: one per movie,
// one per episode.
func (s *Server) generateM3U(user *types.User) (*m3u.Playlist, error) {
	var playlist = new(m3u.Playlist)
	playlist.Tracks = make([]m3u.Track, 0)

	movies, err := s.store.ListTitles(types.TypeMovies, "", catalogLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range movies {
		t := &movies[i]
		track := m3u.Track{
			Name:   t.Title,
			Length: -1,
			URI:    s.streamURL("movie", user.Username, user.APIKey, t.TitleID, "mp4"),
		}
		track.Tags = titleTags(t, t.Title)
		playlist.Tracks = append(playlist.Tracks, track)
	}

	shows, err := s.store.ListTitles(types.TypeTVShows, "", catalogLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range shows {
		t := &shows[i]
		for _, streamID := range sortedStreamIDs(t.Streams) {
			season, episode, ok := types.ParseEpisodeKey(streamID)
			if !ok {
				continue
			}
			name := fmt.Sprintf("%s %s", t.Title, streamID)
			track := m3u.Track{
				Name:   name,
				Length: -1,
				URI:    s.streamURL("series", user.Username, user.APIKey, types.BuildSeriesStreamID(t.TitleID, season, episode), "mp4"),
			}
			track.Tags = titleTags(t, name)
			playlist.Tracks = append(playlist.Tracks, track)
		}
	}

	utils.DebugLog("Playlist generation complete: %d total tracks", len(playlist.Tracks))
	return playlist, nil
}

func titleTags(t *types.Title, name string) []m3u.Tag {
	var tags []m3u.Tag
	if t.IMDBID != "" {
		tags = append(tags, m3u.Tag{Name: "tvg-id", Value: t.IMDBID})
	} else {
		tags = append(tags, m3u.Tag{Name: "tvg-id", Value: t.TitleID})
	}
	tags = append(tags, m3u.Tag{Name: "tvg-name", Value: name})
	if t.PosterPath != "" {
		tags = append(tags, m3u.Tag{Name: "tvg-logo", Value: tmdbImage(t.PosterPath)})
	}
	if g := primaryGenre(t); g != "" {
		tags = append(tags, m3u.Tag{Name: "group-title", Value: g})
	}
	return tags
}

// cacheM3U stores a generated playlist to a temp file for reuse.
func cacheM3U(playlist *m3u.Playlist, cacheName string) error {
	m3uCacheLock.Lock()
	defer m3uCacheLock.Unlock()

	path := filepath.Join(os.TempDir(), uuid.NewV4().String()+".streamfed.m3u")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := marshallInto(f, playlist); err != nil {
		return err
	}
	if old, ok := m3uCache[cacheName]; ok {
		os.Remove(old.path) // nolint: errcheck
	}
	m3uCache[cacheName] = m3uCacheMeta{path, time.Now()}
	utils.DebugLog("Cached M3U at %s for key %s", path, cacheName)
	return nil
}

// marshallInto writes a playlist in EXTM3U form.
func marshallInto(into *os.File, playlist *m3u.Playlist) error {
	into.WriteString("#EXTM3U\n") // nolint: errcheck
	for _, track := range playlist.Tracks {
		var buffer bytes.Buffer

		buffer.WriteString("#EXTINF:")                       // nolint: errcheck
		buffer.WriteString(fmt.Sprintf("%d ", track.Length)) // nolint: errcheck
		for i := range track.Tags {
			if i == len(track.Tags)-1 {
				buffer.WriteString(fmt.Sprintf("%s=%q", track.Tags[i].Name, track.Tags[i].Value)) // nolint: errcheck
				continue
			}
			buffer.WriteString(fmt.Sprintf("%s=%q ", track.Tags[i].Name, track.Tags[i].Value)) // nolint: errcheck
		}

		into.WriteString(fmt.Sprintf("%s, %s\n%s\n", buffer.String(), track.Name, track.URI)) // nolint: errcheck
	}
	return into.Sync()
}

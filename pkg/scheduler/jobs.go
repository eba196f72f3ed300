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
	"context"
	"fmt"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/ingest"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// Well-known job names.
const (
	JobProvidersSync = "providers-sync"
	JobCacheCleanup  = "cache-cleanup"
	JobStatsRefresh  = "stats-refresh"
)

// cacheRetention is how long unused cache entries survive the cleanup
// job. Longer than every endpoint TTL, so only abandoned entries go.
const cacheRetention = 7 * 24 * time.Hour

// Default schedules, overridable per job through the environment using
// the interval grammar of ParseInterval.
const (
	defaultSyncInterval    = "12h"
	defaultCleanupInterval = "6h"
	defaultStatsInterval   = "1h"
)

// jobInterval reads one schedule from the environment, keeping the
// default when the variable is unset or does not parse.
func jobInterval(envVar, fallback string) time.Duration {
	raw := utils.GetEnvOrDefault(envVar, fallback)
	d, err := ParseInterval(raw)
	if err != nil {
		utils.WarnLog("Invalid interval %q in %s, using %s", raw, envVar, fallback)
		d, _ = ParseInterval(fallback)
	}
	return d
}

// RegisterStandardJobs installs the built-in maintenance jobs:
//
//	providers-sync  every 12h (SYNC_INTERVAL), first run 30s after
//	                start; chains a stats refresh on success
//	cache-cleanup   every 6h (CACHE_CLEANUP_INTERVAL), first run after 5m
//	stats-refresh   every 1h (STATS_REFRESH_INTERVAL), first run after
//	                2m; skipped while a provider sync is in flight
func RegisterStandardJobs(s *Scheduler, pipeline *ingest.Pipeline, store *cache.Store, db *database.DBManager, metadata *tmdb.Client) {
	s.Register(&Job{
		Name:         JobProvidersSync,
		Interval:     jobInterval("SYNC_INTERVAL", defaultSyncInterval),
		StartupDelay: 30 * time.Second,
		PostExecute:  []string{JobStatsRefresh},
		Run: func(ctx context.Context) (string, error) {
			// The TMDB key is rotatable at runtime through the settings
			// store; pick up the current one before each sync.
			if metadata != nil {
				if key, err := db.GetSetting(database.SettingTMDBAPIKey); err == nil && key != "" {
					metadata.SetAPIKey(key)
				} else if err != nil && err != types.ErrNotFound {
					utils.WarnLog("Could not read TMDB API key from settings: %v", err)
				}
			}
			summary, err := pipeline.SyncAll(ctx)
			return summary.String(), err
		},
	})

	s.Register(&Job{
		Name:         JobCacheCleanup,
		Interval:     jobInterval("CACHE_CLEANUP_INTERVAL", defaultCleanupInterval),
		StartupDelay: 5 * time.Minute,
		Run: func(ctx context.Context) (string, error) {
			removed, err := store.Cleanup(cacheRetention)
			return fmt.Sprintf("removed=%d", removed), err
		},
	})

	s.Register(&Job{
		Name:          JobStatsRefresh,
		Interval:      jobInterval("STATS_REFRESH_INTERVAL", defaultStatsInterval),
		StartupDelay:  2 * time.Minute,
		SkipIfRunning: []string{JobProvidersSync},
		Run: func(ctx context.Context) (string, error) {
			stats, err := db.RefreshInventoryStats()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("movies=%d tvshows=%d streams=%d", stats.Movies, stats.TVShows, stats.TitleStreams), nil
		},
	})
}

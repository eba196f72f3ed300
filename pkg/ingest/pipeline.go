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

// Package ingest runs the provider synchronization pipeline: fetch each
// provider's catalog, match against TMDB, and upsert the normalized
// inventory.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/provider"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

// Default flush sizes. AGTV batches larger since its catalog arrives in
// memory in one playlist rather than per-title calls.
const (
	DefaultXtreamBatchSize = 100
	DefaultAGTVBatchSize   = 500
)

// Store is the persistence surface the pipeline writes through.
type Store interface {
	ListProviders() ([]types.Provider, error)
	GetProviderTitles(providerID, contentType string) (map[string]*types.ProviderTitle, error)
	GetProviderStreamKeys(providerID string) (map[string][]string, error)
	BulkSaveProviderTitles([]types.ProviderTitle) (database.BulkResult, error)
	BulkSaveTitleStreams([]types.TitleStream) (database.BulkResult, error)
	BulkSaveTitles([]types.Title) (database.BulkResult, error)
	DeleteStreamsNotIn(providerID, titleKey string, keepStreamIDs []string) (int64, error)
	PruneProviderTitles(providerID, contentType string, seenKeys []string) (int64, error)
	PruneTitleStreams(providerID, contentType string, seenKeys []string) (int64, error)
	DeleteOrphanTitles() (int64, error)
}

// TitleMatcher binds a provider record to TMDB.
type TitleMatcher interface {
	Match(ctx context.Context, rec *types.TitleRecord) error
}

// MetadataSource supplies canonical title metadata.
type MetadataSource interface {
	Details(ctx context.Context, contentType string, tmdbID int) (*tmdb.Details, error)
}

// Summary aggregates one sync run.
type Summary struct {
	Providers int
	Processed int
	Skipped   int
	Ignored   int
	Inserted  int
	Updated   int
	Pruned    int64
	Failures  int
}

func (s Summary) String() string {
	return fmt.Sprintf("providers=%d processed=%d skipped=%d ignored=%d inserted=%d updated=%d pruned=%d failures=%d",
		s.Providers, s.Processed, s.Skipped, s.Ignored, s.Inserted, s.Updated, s.Pruned, s.Failures)
}

// Pipeline executes provider synchronization runs.
type Pipeline struct {
	store    Store
	matcher  TitleMatcher
	metadata MetadataSource
	deps     provider.Deps

	xtreamBatchSize  int
	agtvBatchSize    int
	progressInterval time.Duration

	// newAdapter is swappable in tests.
	newAdapter func(*types.Provider, provider.Deps) (provider.Adapter, error)
}

// NewPipeline wires a pipeline over the shared collaborators.
func NewPipeline(store Store, matcher TitleMatcher, metadata MetadataSource, deps provider.Deps) *Pipeline {
	return &Pipeline{
		store:            store,
		matcher:          matcher,
		metadata:         metadata,
		deps:             deps,
		xtreamBatchSize:  DefaultXtreamBatchSize,
		agtvBatchSize:    DefaultAGTVBatchSize,
		progressInterval: progressInterval,
		newAdapter:       provider.New,
	}
}

// SetBatchSizes overrides the per-driver flush sizes. Zero keeps the
// default.
func (p *Pipeline) SetBatchSizes(xtream, agtv int) {
	if xtream > 0 {
		p.xtreamBatchSize = xtream
	}
	if agtv > 0 {
		p.agtvBatchSize = agtv
	}
}

// SyncAll synchronizes every enabled provider in priority order. One
// provider failing does not stop the others.
func (p *Pipeline) SyncAll(ctx context.Context) (Summary, error) {
	providers, err := p.store.ListProviders()
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for i := range providers {
		prov := providers[i]
		if !prov.Enabled {
			utils.DebugLog("Provider %s disabled, skipping sync", prov.ID)
			continue
		}
		summary.Providers++

		if err := p.SyncProvider(ctx, &prov, &summary); err != nil {
			summary.Failures++
			utils.ErrorLog("Provider %s sync failed: %v", prov.ID, err)
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	pruned, err := p.store.DeleteOrphanTitles()
	if err != nil {
		return summary, err
	}
	if pruned > 0 {
		summary.Pruned += pruned
		utils.InfoLog("Removed %d orphan titles", pruned)
	}

	utils.InfoLog("Provider sync complete: %s", summary)
	return summary, nil
}

// SyncProvider synchronizes both content types of one provider. A failure
// in one type aborts that type only.
func (p *Pipeline) SyncProvider(ctx context.Context, prov *types.Provider, summary *Summary) error {
	adapter, err := p.newAdapter(prov, p.deps)
	if err != nil {
		return err
	}

	storedStreamKeys, err := p.store.GetProviderStreamKeys(prov.ID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, contentType := range []string{types.TypeMovies, types.TypeTVShows} {
		if !prov.SupportsType(contentType) {
			continue
		}
		if err := p.syncType(ctx, prov, adapter, contentType, storedStreamKeys, summary); err != nil {
			utils.ErrorLog("Provider %s %s sync aborted: %v", prov.ID, contentType, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Pipeline) syncType(ctx context.Context, prov *types.Provider, adapter provider.Adapter, contentType string, storedStreamKeys map[string][]string, summary *Summary) error {
	started := time.Now()

	records, err := adapter.ListTitles(ctx, contentType)
	if err != nil {
		return err
	}

	existing, err := p.store.GetProviderTitles(prov.ID, contentType)
	if err != nil {
		return err
	}

	utils.InfoLog("Provider %s: syncing %d %s against %d known", prov.ID, len(records), contentType, len(existing))

	tracker := NewTracker(len(records), p.progressInterval, func(remaining int) {
		utils.InfoLog("Provider %s %s sync: %d remaining", prov.ID, contentType, remaining)
	})
	defer tracker.Stop()

	batchSize := p.xtreamBatchSize
	if adapter.ProviderType() == types.ProviderAGTV {
		batchSize = p.agtvBatchSize
	}

	var batch []processedTitle
	seenKeys := make([]string, 0, len(records))

	for i := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec := records[i]

		existingRow := existing[rec.TitleID]
		var storedKeys []string
		if existingRow != nil {
			storedKeys = storedStreamKeys[existingRow.TitleKey]
		}
		if provider.ShouldSkip(adapter.ProviderType(), &rec, existingRow, storedKeys) {
			seenKeys = append(seenKeys, existingRow.TitleKey)
			summary.Skipped++
			tracker.Decrement(1)
			continue
		}

		processed := p.processTitle(ctx, prov, adapter, &rec)
		seenKeys = append(seenKeys, processed.entry.TitleKey)
		batch = append(batch, processed)

		if len(batch) >= batchSize {
			if err := p.flush(prov, batch, tracker, summary); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := p.flush(prov, batch, tracker, summary); err != nil {
			return err
		}
	}

	if err := p.prune(prov, contentType, seenKeys, summary); err != nil {
		return err
	}

	utils.InfoLog("Provider %s %s sync finished in %s", prov.ID, contentType, time.Since(started).Round(time.Millisecond))
	return nil
}

// processedTitle carries one title through a flush: the provider row, its
// playable locations, and (when matched) the canonical title.
type processedTitle struct {
	entry   types.ProviderTitle
	streams []types.TitleStream
	title   *types.Title
}

// processTitle runs the per-title steps: complete the record from the
// extended endpoint where the driver needs it, clean the name, match
// against TMDB, and build the persistable rows. Failures soft-ignore the
// title; the row persists so the ignore is visible and retried next run.
func (p *Pipeline) processTitle(ctx context.Context, prov *types.Provider, adapter provider.Adapter, rec *types.TitleRecord) processedTitle {
	entry := types.ProviderTitle{
		ProviderID:  prov.ID,
		TitleID:     rec.TitleID,
		Type:        rec.Type,
		CategoryID:  rec.CategoryID,
		ReleaseDate: rec.ReleaseDate,
	}

	// Xtream listings are shallow: series carry no episodes and movie
	// rows usually no TMDB id. Complete them from the extended call.
	needDetails := adapter.ProviderType() == types.ProviderXtream &&
		(rec.Type == types.TypeTVShows || rec.TMDBID == 0)
	if needDetails {
		full, err := adapter.FetchTitleDetails(ctx, rec.Type, rec.TitleID)
		if err != nil {
			return p.ignore(entry, rec, err)
		}
		mergeDetails(rec, full)
	}

	if err := p.matcher.Match(ctx, rec); err != nil {
		return p.ignore(entry, rec, err)
	}

	details, err := p.metadata.Details(ctx, rec.Type, rec.TMDBID)
	if err != nil {
		entry.TMDBID = rec.TMDBID
		return p.ignore(entry, rec, err)
	}

	titleKey := types.TitleKey(rec.Type, strconv.Itoa(rec.TMDBID))
	entry.TitleKey = titleKey
	entry.TMDBID = rec.TMDBID
	if entry.ReleaseDate == "" {
		entry.ReleaseDate = details.EffectiveReleaseDate()
	}

	streams := make([]types.TitleStream, 0, len(rec.Streams))
	for streamID, proxyURL := range rec.Streams {
		if !types.IsValidStreamID(streamID) {
			utils.DebugLog("Provider %s: dropping malformed stream id %q for %s", prov.ID, streamID, titleKey)
			continue
		}
		streams = append(streams, types.TitleStream{
			TitleKey:   titleKey,
			StreamID:   streamID,
			ProviderID: prov.ID,
			ProxyURL:   proxyURL,
		})
	}

	title := &types.Title{
		TitleKey:     titleKey,
		TitleID:      strconv.Itoa(rec.TMDBID),
		Type:         rec.Type,
		Title:        details.DisplayTitle(),
		ReleaseDate:  details.EffectiveReleaseDate(),
		Overview:     details.Overview,
		VoteAverage:  details.VoteAverage,
		Genres:       details.GenreNames(),
		Runtime:      details.EffectiveRuntime(),
		PosterPath:   details.PosterPath,
		BackdropPath: details.BackdropPath,
		IMDBID:       details.EffectiveIMDBID(),
		Streams:      rec.Episodes,
	}

	return processedTitle{entry: entry, streams: streams, title: title}
}

// ignore marks a title soft-ignored. The title key falls back to the
// provider-local id so the row still has a stable identity.
func (p *Pipeline) ignore(entry types.ProviderTitle, rec *types.TitleRecord, err error) processedTitle {
	if entry.TitleKey == "" {
		entry.TitleKey = types.TitleKey(rec.Type, rec.TitleID)
	}
	entry.Ignored = true
	entry.IgnoredReason = provider.IgnoreReason(err)
	utils.DebugLog("Ignoring %s %q: %s", rec.Type, rec.Name, entry.IgnoredReason)
	return processedTitle{entry: entry}
}

// mergeDetails folds an extended-info record into a listing record.
func mergeDetails(rec, full *types.TitleRecord) {
	if full.TMDBID != 0 {
		rec.TMDBID = full.TMDBID
	}
	if full.ReleaseDate != "" {
		rec.ReleaseDate = full.ReleaseDate
	}
	if len(full.Streams) > 0 {
		rec.Streams = full.Streams
	}
	if len(full.Episodes) > 0 {
		rec.Episodes = full.Episodes
	}
	if full.Name != "" && rec.Name == "" {
		rec.Name = full.Name
	}
}

// flush persists one accumulated batch: provider rows and streams first,
// then canonical titles that now have at least one stream.
func (p *Pipeline) flush(prov *types.Provider, batch []processedTitle, tracker *Tracker, summary *Summary) error {
	entries := make([]types.ProviderTitle, 0, len(batch))
	var streams []types.TitleStream
	var titles []types.Title
	ignored := 0

	for _, item := range batch {
		entries = append(entries, item.entry)
		if item.entry.Ignored {
			ignored++
			continue
		}
		streams = append(streams, item.streams...)
		if item.title != nil && len(item.streams) > 0 {
			titles = append(titles, *item.title)
		}
	}

	entryResult, err := p.store.BulkSaveProviderTitles(entries)
	if err != nil {
		return err
	}
	streamResult, err := p.store.BulkSaveTitleStreams(streams)
	if err != nil {
		return err
	}
	titleResult, err := p.store.BulkSaveTitles(titles)
	if err != nil {
		return err
	}

	// Episode sets can shrink between runs; drop this provider's stream
	// rows that left the newly fetched set.
	for _, item := range batch {
		if item.entry.Ignored || item.entry.Type != types.TypeTVShows || len(item.streams) == 0 {
			continue
		}
		keep := make([]string, 0, len(item.streams))
		for _, s := range item.streams {
			keep = append(keep, s.StreamID)
		}
		if _, err := p.store.DeleteStreamsNotIn(prov.ID, item.entry.TitleKey, keep); err != nil {
			return err
		}
	}

	tracker.Decrement(len(batch))
	summary.Processed += len(batch)
	summary.Ignored += ignored
	summary.Inserted += entryResult.Inserted + streamResult.Inserted + titleResult.Inserted
	summary.Updated += entryResult.Updated + streamResult.Updated + titleResult.Updated

	utils.DebugLog("Provider %s: flushed %d titles (%d ignored), %d remaining",
		prov.ID, len(batch), ignored, tracker.Remaining())
	return nil
}

// prune removes rows for titles that vanished from the provider's catalog
// this run.
func (p *Pipeline) prune(prov *types.Provider, contentType string, seenKeys []string, summary *Summary) error {
	prunedEntries, err := p.store.PruneProviderTitles(prov.ID, contentType, seenKeys)
	if err != nil {
		return err
	}
	prunedStreams, err := p.store.PruneTitleStreams(prov.ID, contentType, seenKeys)
	if err != nil {
		return err
	}
	if prunedEntries > 0 || prunedStreams > 0 {
		utils.InfoLog("Provider %s %s: pruned %d titles, %d streams", prov.ID, contentType, prunedEntries, prunedStreams)
	}
	summary.Pruned += prunedEntries + prunedStreams
	return nil
}

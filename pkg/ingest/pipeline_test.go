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

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/provider"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/types"
)

type fakeStore struct {
	providers      []types.Provider
	providerTitles map[string]*types.ProviderTitle
	streamKeys     map[string][]string

	savedEntries []types.ProviderTitle
	savedStreams []types.TitleStream
	savedTitles  []types.Title
	prunedSeen   map[string][]string
	orphanCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providerTitles: map[string]*types.ProviderTitle{},
		streamKeys:     map[string][]string{},
		prunedSeen:     map[string][]string{},
	}
}

func (f *fakeStore) ListProviders() ([]types.Provider, error) { return f.providers, nil }
func (f *fakeStore) GetProviderTitles(providerID, contentType string) (map[string]*types.ProviderTitle, error) {
	out := map[string]*types.ProviderTitle{}
	for id, e := range f.providerTitles {
		if e.ProviderID == providerID && e.Type == contentType {
			out[id] = e
		}
	}
	return out, nil
}
func (f *fakeStore) GetProviderStreamKeys(string) (map[string][]string, error) {
	return f.streamKeys, nil
}
func (f *fakeStore) BulkSaveProviderTitles(entries []types.ProviderTitle) (database.BulkResult, error) {
	f.savedEntries = append(f.savedEntries, entries...)
	return database.BulkResult{Inserted: len(entries)}, nil
}
func (f *fakeStore) BulkSaveTitleStreams(streams []types.TitleStream) (database.BulkResult, error) {
	f.savedStreams = append(f.savedStreams, streams...)
	return database.BulkResult{Inserted: len(streams)}, nil
}
func (f *fakeStore) BulkSaveTitles(titles []types.Title) (database.BulkResult, error) {
	f.savedTitles = append(f.savedTitles, titles...)
	return database.BulkResult{Inserted: len(titles)}, nil
}
func (f *fakeStore) DeleteStreamsNotIn(string, string, []string) (int64, error) { return 0, nil }
func (f *fakeStore) PruneProviderTitles(providerID, contentType string, seenKeys []string) (int64, error) {
	f.prunedSeen[providerID+"/"+contentType] = seenKeys
	return 0, nil
}
func (f *fakeStore) PruneTitleStreams(string, string, []string) (int64, error) { return 0, nil }
func (f *fakeStore) DeleteOrphanTitles() (int64, error) {
	f.orphanCalls++
	return 0, nil
}

type fakeMatcher struct {
	ids  map[string]int
	errs map[string]error
}

func (m *fakeMatcher) Match(_ context.Context, rec *types.TitleRecord) error {
	if err := m.errs[rec.TitleID]; err != nil {
		return err
	}
	if rec.TMDBID == 0 {
		rec.TMDBID = m.ids[rec.TitleID]
	}
	if rec.TMDBID == 0 {
		return types.ErrNotFound
	}
	return nil
}

type fakeMetadata struct{}

func (fakeMetadata) Details(_ context.Context, contentType string, tmdbID int) (*tmdb.Details, error) {
	return &tmdb.Details{ID: tmdbID, Title: "Title", ReleaseDate: "2020-01-01"}, nil
}

type fakeAdapter struct {
	providerType string
	records      map[string][]types.TitleRecord
	listErr      error
}

func (a *fakeAdapter) ListCategories(context.Context, string) ([]types.Category, error) {
	return nil, nil
}
func (a *fakeAdapter) ListTitles(_ context.Context, contentType string) ([]types.TitleRecord, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.records[contentType], nil
}
func (a *fakeAdapter) FetchTitleDetails(context.Context, string, string) (*types.TitleRecord, error) {
	return nil, types.ErrNotFound
}
func (a *fakeAdapter) ProviderType() string { return a.providerType }

func newTestPipeline(store *fakeStore, matcher *fakeMatcher, adapters map[string]provider.Adapter) *Pipeline {
	p := NewPipeline(store, matcher, fakeMetadata{}, provider.Deps{})
	p.progressInterval = time.Hour
	p.newAdapter = func(prov *types.Provider, _ provider.Deps) (provider.Adapter, error) {
		return adapters[prov.ID], nil
	}
	return p
}

func agtvProvider(id string) types.Provider {
	return types.Provider{ID: id, Type: types.ProviderAGTV, Enabled: true}
}

func TestSyncProcessesNewAndSkipsUnchanged(t *testing.T) {
	store := newFakeStore()
	store.providers = []types.Provider{agtvProvider("p1")}

	// tt1 already ingested with the same episode set: skipped.
	store.providerTitles["tt1"] = &types.ProviderTitle{
		ProviderID: "p1", TitleKey: "tvshows-100", TitleID: "tt1", Type: types.TypeTVShows,
		LastUpdated: time.Now(),
	}
	store.streamKeys["tvshows-100"] = []string{"S01-E01"}

	adapter := &fakeAdapter{
		providerType: types.ProviderAGTV,
		records: map[string][]types.TitleRecord{
			types.TypeTVShows: {
				{TitleID: "tt1", Name: "Known Show", Type: types.TypeTVShows,
					Streams: map[string]string{"S01-E01": "http://x/1/1/1"}},
				{TitleID: "tt2", Name: "New Show", Type: types.TypeTVShows,
					Streams: map[string]string{"S01-E01": "http://x/2/1/1"}},
			},
		},
	}
	matcher := &fakeMatcher{ids: map[string]int{"tt2": 200}}

	p := newTestPipeline(store, matcher, map[string]provider.Adapter{"p1": adapter})
	summary, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Skipped != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.savedEntries) != 1 || store.savedEntries[0].TitleKey != "tvshows-200" {
		t.Errorf("saved entries = %+v", store.savedEntries)
	}
	if len(store.savedStreams) != 1 || store.savedStreams[0].StreamID != "S01-E01" {
		t.Errorf("saved streams = %+v", store.savedStreams)
	}
	if len(store.savedTitles) != 1 || store.savedTitles[0].TitleKey != "tvshows-200" {
		t.Errorf("saved titles = %+v", store.savedTitles)
	}

	// Both keys are seen: the skipped one and the processed one.
	seen := store.prunedSeen["p1/tvshows"]
	if len(seen) != 2 {
		t.Errorf("seen keys = %v", seen)
	}
	if store.orphanCalls != 1 {
		t.Errorf("orphan cleanup calls = %d", store.orphanCalls)
	}
}

func TestSyncPersistsIgnoredTitles(t *testing.T) {
	store := newFakeStore()
	store.providers = []types.Provider{agtvProvider("p1")}

	adapter := &fakeAdapter{
		providerType: types.ProviderAGTV,
		records: map[string][]types.TitleRecord{
			types.TypeMovies: {
				{TitleID: "tt9", Name: "Obscure Film", Type: types.TypeMovies,
					Streams: map[string]string{types.StreamIDMain: "http://x/m/9.mp4"}},
			},
		},
	}
	matcher := &fakeMatcher{errs: map[string]error{"tt9": types.ErrNotFound}}

	p := newTestPipeline(store, matcher, map[string]provider.Adapter{"p1": adapter})
	summary, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Ignored != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.savedEntries) != 1 {
		t.Fatalf("saved entries = %+v", store.savedEntries)
	}
	entry := store.savedEntries[0]
	if !entry.Ignored || entry.IgnoredReason == "" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.TitleKey != "movies-tt9" {
		t.Errorf("fallback title key = %q", entry.TitleKey)
	}
	if len(store.savedStreams) != 0 || len(store.savedTitles) != 0 {
		t.Error("ignored titles must not produce streams or canonical titles")
	}
}

func TestSyncProviderFailureDoesNotStopOthers(t *testing.T) {
	store := newFakeStore()
	store.providers = []types.Provider{agtvProvider("bad"), agtvProvider("good")}

	adapters := map[string]provider.Adapter{
		"bad": &fakeAdapter{providerType: types.ProviderAGTV, listErr: errors.New("upstream down")},
		"good": &fakeAdapter{
			providerType: types.ProviderAGTV,
			records: map[string][]types.TitleRecord{
				types.TypeMovies: {
					{TitleID: "tt1", Name: "Film", Type: types.TypeMovies,
						Streams: map[string]string{types.StreamIDMain: "http://x/1.mp4"}},
				},
			},
		},
	}
	matcher := &fakeMatcher{ids: map[string]int{"tt1": 300}}

	p := newTestPipeline(store, matcher, adapters)
	summary, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Failures != 1 {
		t.Errorf("failures = %d", summary.Failures)
	}
	if summary.Processed != 1 {
		t.Errorf("the healthy provider should still sync: %+v", summary)
	}
}

func TestSyncSkipsDisabledProviders(t *testing.T) {
	store := newFakeStore()
	disabled := agtvProvider("off")
	disabled.Enabled = false
	store.providers = []types.Provider{disabled}

	p := newTestPipeline(store, &fakeMatcher{}, nil)
	summary, err := p.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Providers != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestTrackerCountdown(t *testing.T) {
	var reported []int
	tracker := NewTracker(10, 10*time.Millisecond, func(remaining int) {
		reported = append(reported, remaining)
	})
	tracker.Decrement(4)
	time.Sleep(35 * time.Millisecond)
	tracker.Stop()

	if tracker.Remaining() != 6 {
		t.Errorf("remaining = %d", tracker.Remaining())
	}
	if len(reported) == 0 {
		t.Error("tracker should report periodically")
	}
	for _, r := range reported {
		if r != 6 {
			t.Errorf("reported remaining = %d, want 6", r)
		}
	}
}

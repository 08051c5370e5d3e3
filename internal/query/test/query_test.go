package main

import (
	"context"
	"testing"
	"time"

	cache "github.com/kingBirds/games-website/internal/cache"
	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	query "github.com/kingBirds/games-website/internal/query"
)

// stubFetcher counts live fetches and serves a fixed result.
type stubFetcher struct {
	sliceCalls int
	byIDCalls  int
	games      []models.GameRecord
	byID       *models.GameRecord
}

func (f *stubFetcher) FetchSlice(context.Context, string, int, string) []models.GameRecord {
	f.sliceCalls++
	return f.games
}

func (f *stubFetcher) FetchByID(context.Context, string) *models.GameRecord {
	f.byIDCalls++
	return f.byID
}

func game(id, title string, tags ...string) models.GameRecord {
	return models.GameRecord{ID: id, Title: title, Description: "desc of " + title, Categories: []string{"action"}, Tags: tags}
}

func writeFixture(t *testing.T, store *cache.Store, age time.Duration, games ...models.GameRecord) {
	t.Helper()
	when := time.Now().Add(-age)
	snap := &models.Snapshot{
		Timestamp:   when,
		LastUpdated: when,
		Categories:  map[string][]models.GameRecord{"Action": games},
		Popularity:  map[string][]models.GameRecord{constants.PopularityMostPlayed: games},
		AllGames:    games,
		TotalGames:  len(games),
	}
	if err := store.WriteSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	meta := &models.CacheMetadata{
		LastUpdated:     when,
		UpdateFrequency: constants.UpdateFrequency,
		NextUpdate:      when.Add(24 * time.Hour),
		Status:          constants.CacheStatusFresh,
		Version:         constants.SnapshotVersion,
	}
	if err := store.WriteMetadata(meta); err != nil {
		t.Fatal(err)
	}
}

func newService(t *testing.T, fetcher *stubFetcher) (*query.Service, *cache.Store) {
	t.Helper()
	store := cache.NewStore(t.TempDir())
	return query.NewService(store, fetcher, 24*time.Hour), store
}

func TestByCategoryServesFreshCache(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, time.Hour, game("g1", "Dragon Quest"), game("g2", "Kart"), game("g3", "Brawl"))

	result := svc.ByCategory(context.Background(), "Action", 2)
	if result.Source != query.SourceCache || result.Degraded {
		t.Errorf("Fresh cache should serve from cache, got %+v", result)
	}
	if len(result.Games) != 2 {
		t.Errorf("Limit should truncate to 2, got %d", len(result.Games))
	}
	if fetcher.sliceCalls != 0 {
		t.Errorf("Fresh cache must not hit upstream, got %d calls", fetcher.sliceCalls)
	}
}

func TestByCategoryAllServesMasterList(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, time.Hour, game("g1", "Dragon Quest"), game("g2", "Kart"))

	result := svc.ByCategory(context.Background(), constants.CategoryAll, 10)
	if len(result.Games) != 2 {
		t.Errorf("All bucket should serve the deduplicated union, got %d games", len(result.Games))
	}
}

func TestStaleCacheFallsToLiveFetch(t *testing.T) {
	fetcher := &stubFetcher{games: []models.GameRecord{game("live1", "Live Game")}}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, 25*time.Hour, game("old1", "Old Game"))

	result := svc.ByCategory(context.Background(), "Action", 10)
	if fetcher.sliceCalls != 1 {
		t.Fatalf("Stale cache should trigger exactly one live fetch, got %d", fetcher.sliceCalls)
	}
	if result.Source != query.SourceLive || result.Degraded {
		t.Errorf("Live fallback should not be degraded, got %+v", result)
	}
	if len(result.Games) != 1 || result.Games[0].ID != "live1" {
		t.Errorf("Expected live result, got %+v", result.Games)
	}
}

func TestLiveFailureFallsToStaleSnapshot(t *testing.T) {
	fetcher := &stubFetcher{} // live returns nothing
	svc, store := newService(t, fetcher)
	writeFixture(t, store, 25*time.Hour, game("old1", "Old Game"))

	result := svc.ByCategory(context.Background(), "Action", 10)
	if result.Source != query.SourceStale || !result.Degraded {
		t.Errorf("Stale fallback should be marked degraded, got source=%s degraded=%v", result.Source, result.Degraded)
	}
	if len(result.Games) != 1 || result.Games[0].ID != "old1" {
		t.Errorf("Expected stale snapshot data, got %+v", result.Games)
	}
}

func TestEmptyStoreAndDeadUpstreamYieldsEmptyDegraded(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, _ := newService(t, fetcher)

	result := svc.ByCategory(context.Background(), "Action", 10)
	if result.Games == nil || len(result.Games) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", result.Games)
	}
	if !result.Degraded {
		t.Error("Total failure must set the degraded flag")
	}
}

func TestByPopularity(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, time.Hour, game("g1", "Dragon Quest"), game("g2", "Kart"))

	result := svc.ByPopularity(context.Background(), constants.PopularityMostPlayed, 1)
	if result.Source != query.SourceCache || len(result.Games) != 1 {
		t.Errorf("Expected one cached game, got %+v", result)
	}
}

func TestSearchMatchesTitleCaseInsensitive(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, time.Hour,
		game("g1", "Dragon Quest", "fantasy"),
		game("g2", "Dungeon", "rpg"),
		game("g3", "Kart Racer", "dragon-themed"))

	result := svc.Search(context.Background(), "dragon", 20)
	ids := map[string]bool{}
	for _, g := range result.Games {
		ids[g.ID] = true
	}
	if !ids["g1"] {
		t.Error("Title containing Dragon should match case-insensitively")
	}
	if ids["g2"] {
		t.Error("Dungeon with tags [rpg] must not match dragon")
	}
	if !ids["g3"] {
		t.Error("Tag containing dragon should match")
	}
}

func TestByIDPrefersSnapshotEvenWhenStale(t *testing.T) {
	fetcher := &stubFetcher{byID: &models.GameRecord{ID: "upstream", Title: "Upstream"}}
	svc, store := newService(t, fetcher)
	writeFixture(t, store, 30*time.Hour, game("g1", "Dragon Quest"))

	found, ok := svc.ByID(context.Background(), "g1")
	if !ok || found.ID != "g1" {
		t.Fatalf("Expected snapshot hit, got %+v ok=%v", found, ok)
	}
	if fetcher.byIDCalls != 0 {
		t.Errorf("Snapshot hit must not call upstream, got %d calls", fetcher.byIDCalls)
	}

	found, ok = svc.ByID(context.Background(), "upstream")
	if !ok || found.ID != "upstream" {
		t.Fatalf("Expected upstream fallback, got %+v ok=%v", found, ok)
	}
	if fetcher.byIDCalls != 1 {
		t.Errorf("Snapshot miss should call upstream once, got %d calls", fetcher.byIDCalls)
	}
}

func TestByIDAbsentEverywhere(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, _ := newService(t, fetcher)

	if found, ok := svc.ByID(context.Background(), "nope"); ok || found != nil {
		t.Errorf("Expected absent result, got %+v ok=%v", found, ok)
	}
}

func TestStats(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, store := newService(t, fetcher)

	if svc.Stats() != nil {
		t.Error("Stats should be nil with no snapshot")
	}

	writeFixture(t, store, time.Hour, game("g1", "Dragon Quest"), game("g2", "Kart"))

	stats := svc.Stats()
	if stats == nil {
		t.Fatal("Expected stats after fixture write")
	}
	if stats.TotalGames != 2 {
		t.Errorf("Expected totalGames=2, got %d", stats.TotalGames)
	}
	if stats.Status != constants.CacheStatusFresh {
		t.Errorf("Fresh metadata should report status fresh, got %s", stats.Status)
	}
	if stats.CategoriesCount != 1 || stats.PopularityTypesCount != 1 {
		t.Errorf("Unexpected bucket counts: %+v", stats)
	}
	if stats.CacheSizeBytes <= 0 {
		t.Error("Cache size should be positive once a snapshot exists")
	}
}

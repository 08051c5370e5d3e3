// Package query is the read API for page handlers. Every list read walks the
// same ladder: fresh snapshot, then a live upstream fetch, then whatever
// stale snapshot exists. A page never hard-fails just because the cache
// lapsed or the network is down.
package query

import (
	"context"
	"strings"
	"time"

	cache "github.com/kingBirds/games-website/internal/cache"
	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	util "github.com/kingBirds/games-website/internal/util"
	"github.com/samber/lo"
)

const (
	SourceCache = "cache"
	SourceLive  = "live"
	SourceStale = "stale"
)

// Fetcher is the slice of the catalog client the read path needs for its
// live-fetch fallback.
type Fetcher interface {
	FetchSlice(ctx context.Context, category string, amount int, popularity string) []models.GameRecord
	FetchByID(ctx context.Context, id string) *models.GameRecord
}

// Result is a list read plus provenance. Degraded means the caller should
// surface a "may be outdated" signal: the data came from a stale snapshot,
// or nothing was available at all.
type Result struct {
	Games    []models.GameRecord `json:"games"`
	Source   string              `json:"source"`
	Degraded bool                `json:"degraded"`
}

// Service reads the snapshot store, applies the freshness policy, and falls
// back to live fetches. It never writes snapshots; only the scheduler does.
type Service struct {
	store   *cache.Store
	fetcher Fetcher
	ttl     time.Duration
}

func NewService(store *cache.Store, fetcher Fetcher, ttl time.Duration) *Service {
	return &Service{store: store, fetcher: fetcher, ttl: ttl}
}

// ByCategory returns up to limit games for one category. "All" serves the
// deduplicated master list.
func (s *Service) ByCategory(ctx context.Context, category string, limit int) Result {
	return s.listRead(ctx,
		func(snap *models.Snapshot) []models.GameRecord {
			if category == constants.CategoryAll {
				return snap.AllGames
			}
			return snap.Categories[category]
		},
		func() []models.GameRecord {
			return s.fetcher.FetchSlice(ctx, category, limit, constants.PopularityNewest)
		},
		limit)
}

// ByPopularity returns up to limit games for one popularity key.
func (s *Service) ByPopularity(ctx context.Context, key string, limit int) Result {
	return s.listRead(ctx,
		func(snap *models.Snapshot) []models.GameRecord {
			return snap.Popularity[key]
		},
		func() []models.GameRecord {
			return s.fetcher.FetchSlice(ctx, constants.CategoryAll, limit, key)
		},
		limit)
}

// Search matches the query case-insensitively against title, description,
// and tags, in snapshot order. No ranking.
func (s *Service) Search(ctx context.Context, q string, limit int) Result {
	term := strings.ToLower(q)
	match := func(g models.GameRecord) bool {
		if strings.Contains(strings.ToLower(g.Title), term) ||
			strings.Contains(strings.ToLower(g.Description), term) {
			return true
		}
		return lo.SomeBy(g.Tags, func(tag string) bool {
			return strings.Contains(tag, term)
		})
	}

	return s.listRead(ctx,
		func(snap *models.Snapshot) []models.GameRecord {
			return lo.Filter(snap.AllGames, func(g models.GameRecord, _ int) bool { return match(g) })
		},
		func() []models.GameRecord {
			live := s.fetcher.FetchSlice(ctx, constants.CategoryAll, constants.MaxGamesPerSlice, constants.PopularityNewest)
			return lo.Filter(live, func(g models.GameRecord, _ int) bool { return match(g) })
		},
		limit)
}

// ByID checks the snapshot master list first, stale or not, and only then
// asks upstream. A single lookup is not worth a category fetch.
func (s *Service) ByID(ctx context.Context, id string) (*models.GameRecord, bool) {
	if snap := s.store.ReadSnapshot(); snap != nil {
		if game, found := lo.Find(snap.AllGames, func(g models.GameRecord) bool { return g.ID == id }); found {
			return &game, true
		}
	}
	if game := s.fetcher.FetchByID(ctx, id); game != nil {
		return game, true
	}
	return nil, false
}

// Stats aggregates snapshot and metadata counters, nil when no snapshot has
// ever been committed.
func (s *Service) Stats() *models.CacheStats {
	snap := s.store.ReadSnapshot()
	meta := s.store.ReadMetadata()
	if snap == nil || meta == nil {
		return nil
	}
	return &models.CacheStats{
		TotalGames:           snap.TotalGames,
		LastUpdated:          meta.LastUpdated,
		CategoriesCount:      len(snap.Categories),
		PopularityTypesCount: len(snap.Popularity),
		CacheSizeBytes:       s.store.SnapshotSize(),
		Status:               cache.StatusLabel(meta, time.Now(), s.ttl),
	}
}

// listRead is the three-tier fallback shared by every list operation.
func (s *Service) listRead(_ context.Context, fromSnapshot func(*models.Snapshot) []models.GameRecord, fromLive func() []models.GameRecord, limit int) Result {
	meta := s.store.ReadMetadata()
	if cache.IsValid(meta, time.Now(), s.ttl) {
		if snap := s.store.ReadSnapshot(); snap != nil {
			return Result{Games: truncate(fromSnapshot(snap), limit), Source: SourceCache}
		}
		// Metadata without a readable snapshot: fall through to live, same
		// as an invalid cache.
		util.LogWarn("Valid metadata but no readable snapshot, falling back to live fetch")
	}

	if live := fromLive(); len(live) > 0 {
		return Result{Games: truncate(live, limit), Source: SourceLive}
	}

	if snap := s.store.ReadSnapshot(); snap != nil {
		util.LogWarn("Live fetch yielded nothing, serving stale snapshot data")
		return Result{Games: truncate(fromSnapshot(snap), limit), Source: SourceStale, Degraded: true}
	}

	return Result{Games: []models.GameRecord{}, Source: SourceStale, Degraded: true}
}

func truncate(games []models.GameRecord, limit int) []models.GameRecord {
	if limit <= 0 {
		limit = constants.DefaultQueryLimit
	}
	if len(games) > limit {
		return games[:limit]
	}
	if games == nil {
		return []models.GameRecord{}
	}
	return games
}

// Package scheduler rebuilds the catalog snapshot: every category slice, then
// every popularity slice, merged and committed as one atomic replacement.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	cache "github.com/kingBirds/games-website/internal/cache"
	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	util "github.com/kingBirds/games-website/internal/util"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// ErrRefreshRunning reports a benign conflict: a refresh was requested while
// one is already in flight. The in-flight cycle is unaffected.
var ErrRefreshRunning = errors.New("refresh already running")

// Fetcher is the slice of the catalog client the scheduler needs.
type Fetcher interface {
	FetchSlice(ctx context.Context, category string, amount int, popularity string) []models.GameRecord
}

// Scheduler owns the snapshot write path. At most one refresh runs at a time;
// queries keep reading the last committed snapshot while a rebuild is in
// flight.
type Scheduler struct {
	store       *cache.Store
	fetcher     Fetcher
	limiter     *rate.Limiter
	maxPerSlice int
	ttl         time.Duration

	mu          sync.Mutex
	running     bool
	lastRun     *time.Time
	lastSuccess *time.Time
	lastError   string
	nextRun     *time.Time
}

func New(store *cache.Store, fetcher Fetcher, throttle time.Duration, maxPerSlice int, ttl time.Duration) *Scheduler {
	if maxPerSlice <= 0 || maxPerSlice > constants.MaxGamesPerSlice {
		maxPerSlice = constants.MaxGamesPerSlice
	}
	return &Scheduler{
		store:       store,
		fetcher:     fetcher,
		limiter:     rate.NewLimiter(rate.Every(throttle), 1),
		maxPerSlice: maxPerSlice,
		ttl:         ttl,
	}
}

// Refresh rebuilds the whole snapshot from upstream and commits it together
// with fresh metadata. A slice that fails to fetch becomes an empty bucket;
// only a commit failure fails the cycle, leaving the previous snapshot
// authoritative.
func (s *Scheduler) Refresh(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		util.LogInfo("Refresh requested while one is in flight, skipping")
		return nil, ErrRefreshRunning
	}
	s.running = true
	started := time.Now()
	s.lastRun = &started
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	// An in-flight refresh always runs to completion or failure. Detach from
	// the caller's context: an admin disconnect or server shutdown must not
	// turn the remaining slices into empty buckets and commit a near-empty
	// snapshot under fresh metadata over a good one.
	ctx = context.WithoutCancel(ctx)

	util.LogInfo("Starting catalog refresh: %d categories, %d popularity keys",
		len(constants.GameCategories), len(constants.PopularityKeys))

	categories := make(map[string][]models.GameRecord, len(constants.GameCategories))
	popularity := make(map[string][]models.GameRecord, len(constants.PopularityKeys))
	merged := make(map[string]models.GameRecord)
	var order []string

	merge := func(games []models.GameRecord) {
		for _, game := range games {
			if _, seen := merged[game.ID]; !seen {
				order = append(order, game.ID)
			}
			merged[game.ID] = game
		}
	}

	for _, category := range constants.GameCategories {
		s.throttle(ctx)
		games := s.fetcher.FetchSlice(ctx, category, s.maxPerSlice, constants.PopularityNewest)
		if len(games) == 0 {
			util.LogWarn("Empty slice for category %s, continuing with empty bucket", category)
		}
		categories[category] = games
		merge(games)
	}

	for _, key := range constants.PopularityKeys {
		s.throttle(ctx)
		games := s.fetcher.FetchSlice(ctx, constants.CategoryAll, s.maxPerSlice, key)
		if len(games) == 0 {
			util.LogWarn("Empty slice for popularity %s, continuing with empty bucket", key)
		}
		popularity[key] = games
		merge(games)
	}

	now := time.Now()
	allGames := lo.Map(order, func(id string, _ int) models.GameRecord {
		return merged[id]
	})

	snap := &models.Snapshot{
		Timestamp:   now,
		LastUpdated: now,
		Categories:  categories,
		Popularity:  popularity,
		AllGames:    allGames,
		TotalGames:  len(allGames),
	}
	meta := &models.CacheMetadata{
		LastUpdated:     now,
		UpdateFrequency: constants.UpdateFrequency,
		NextUpdate:      now.Add(s.ttl),
		Status:          constants.CacheStatusFresh,
		Version:         constants.SnapshotVersion,
	}

	// Snapshot first, metadata second: readers must never see fresh metadata
	// pointing at a missing or stale snapshot.
	if err := s.store.WriteSnapshot(snap); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	if err := s.store.WriteMetadata(meta); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	finished := time.Now()
	next := now.Add(s.ttl)
	s.mu.Lock()
	s.lastSuccess = &finished
	s.lastError = ""
	s.nextRun = &next
	s.mu.Unlock()

	util.LogInfo("Catalog refresh committed: %d unique games in %s", snap.TotalGames, finished.Sub(started).Round(time.Millisecond))
	return snap, nil
}

func (s *Scheduler) recordFailure(err error) {
	util.LogError("Catalog refresh commit failed: %v", err)
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *Scheduler) throttle(ctx context.Context) {
	if err := s.limiter.Wait(ctx); err != nil {
		util.LogWarn("Fetch throttle interrupted: %v", err)
	}
}

// Status is a point-in-time copy of the scheduler's state for the admin
// surface.
func (s *Scheduler) Status() models.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TaskStatus{
		IsRunning:   s.running,
		LastRun:     s.lastRun,
		NextRun:     s.nextRun,
		LastSuccess: s.lastSuccess,
		LastError:   s.lastError,
	}
}

// CheckAndRefresh refreshes only when the current metadata has lapsed. Used
// at boot so a cold or stale process rebuilds before traffic relies on
// fallbacks.
func (s *Scheduler) CheckAndRefresh(ctx context.Context) {
	if cache.IsValid(s.store.ReadMetadata(), time.Now(), s.ttl) {
		util.LogInfo("Cache is valid, no immediate refresh needed")
		return
	}
	util.LogInfo("Cache is invalid, triggering refresh")
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
		util.LogError("Startup refresh failed: %v", err)
	}
}

// Start launches the periodic freshness check. The goroutine exits when ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	next := time.Now().Add(interval)
	s.mu.Lock()
	s.nextRun = &next
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				util.LogInfo("Refresh scheduler stopped")
				return
			case <-ticker.C:
				s.CheckAndRefresh(ctx)
			}
		}
	}()
	util.LogInfo("Started refresh scheduler, checking every %s", interval)
}

package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GameRecord is one catalog entry in our internal shape. Identity is ID;
// records are never mutated after conversion from the upstream feed.
type GameRecord struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions string   `json:"instructions"`
	Thumbnail    string   `json:"thumbnail"`
	GameURL      string   `json:"gameUrl"`
	Categories   []string `json:"category"`
	Tags         []string `json:"tags"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
}

// Snapshot is the output of one full refresh cycle. A refresh always builds
// a brand-new Snapshot and replaces the old one wholesale.
type Snapshot struct {
	Timestamp   time.Time               `json:"timestamp"`
	LastUpdated time.Time               `json:"lastUpdated"`
	Categories  map[string][]GameRecord `json:"categories"`
	Popularity  map[string][]GameRecord `json:"popularity"`
	AllGames    []GameRecord            `json:"allGames"`
	TotalGames  int                     `json:"totalGames"`
}

// CacheMetadata describes the freshness of the snapshot it was written with.
type CacheMetadata struct {
	LastUpdated     time.Time `json:"lastUpdated"`
	UpdateFrequency string    `json:"updateFrequency"`
	NextUpdate      time.Time `json:"nextUpdate"`
	Status          string    `json:"status"`
	Version         string    `json:"version"`
}

// CacheStats is the aggregate view returned by the stats query.
type CacheStats struct {
	TotalGames           int       `json:"totalGames"`
	LastUpdated          time.Time `json:"lastUpdated"`
	CategoriesCount      int       `json:"categoriesCount"`
	PopularityTypesCount int       `json:"popularityTypesCount"`
	CacheSizeBytes       int64     `json:"cacheSizeBytes"`
	Status               string    `json:"status"`
}

// TaskStatus reports the refresh scheduler's state to the admin surface.
type TaskStatus struct {
	IsRunning   bool       `json:"isRunning"`
	LastRun     *time.Time `json:"lastRun"`
	NextRun     *time.Time `json:"nextRun"`
	LastSuccess *time.Time `json:"lastSuccess"`
	LastError   string     `json:"lastError,omitempty"`
}

// RateLimiterEntry tracks a per-client limiter and its last use so stale
// entries can be evicted.
type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

// App holds process-wide configuration and shared state. It is constructed
// once in main and injected into handlers; there are no package globals.
type App struct {
	IsProduction bool
	StartTime    time.Time

	CacheDir         string
	CacheTTL         time.Duration
	FetchTimeout     time.Duration
	FetchThrottle    time.Duration
	MaxGamesPerSlice int

	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration

	LimiterMap   map[string]*RateLimiterEntry
	LimiterMutex sync.RWMutex
}

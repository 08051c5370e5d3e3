package constants

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)

// CategoryAll is the wildcard bucket: upstream treats it as "every category"
// and the snapshot keeps the deduplicated union under it.
const CategoryAll = "All"

// GameCategories is the fixed set of catalog categories we track, matching
// the upstream feed's category parameter.
var GameCategories = []string{
	"All", "Action", "Adventure", "Arcade", "Board", "Card", "Casino", "Casual",
	"Educational", "Fighting", "Puzzle", "Racing", "RPG", "Shooter", "Simulation",
	"Sports", "Strategy",
}

const (
	PopularityNewest     = "newest"
	PopularityMostPlayed = "mostplayed"
	PopularityHotGames   = "hotgames"
	PopularityBest       = "bestgames"
	PopularityExclusive  = "exclusivegames"
	PopularityEditor     = "editorpicks"
	PopularityBranding   = "branding"
)

// PopularityKeys is the fixed set of sort orders the upstream feed accepts.
var PopularityKeys = []string{
	PopularityNewest,
	PopularityMostPlayed,
	PopularityHotGames,
	PopularityBest,
	PopularityExclusive,
	PopularityEditor,
	PopularityBranding,
}

const (
	MaxGamesPerSlice  = 100
	DefaultGameWidth  = 800
	DefaultGameHeight = 600
	DefaultQueryLimit = 20
)

const (
	CacheStatusFresh   = "fresh"
	CacheStatusStale   = "stale"
	CacheStatusExpired = "expired"

	SnapshotVersion = "1.0.0"
	UpdateFrequency = "24h"

	SnapshotFileName = "games-data.json"
	MetadataFileName = "cache-meta.json"
)

const (
	RouteGames      = "/api/games"
	RouteGameByID   = "/api/games/:id"
	RouteSearch     = "/api/search"
	RouteCategories = "/api/categories"
	RouteCache      = "/api/cache"
	RouteHealthz    = "/healthz"
)

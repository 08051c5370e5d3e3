package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/kingBirds/games-website/internal/cache"
	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	query "github.com/kingBirds/games-website/internal/query"
	scheduler "github.com/kingBirds/games-website/internal/scheduler"
	util "github.com/kingBirds/games-website/internal/util"
)

// API bundles the dependencies the route handlers need. Everything is
// injected from main; handlers hold no state of their own.
type API struct {
	App     *models.App
	Store   *cache.Store
	Queries *query.Service
	Sched   *scheduler.Scheduler
}

// ListGamesHandler serves GET /api/games. Filters by category (default All)
// or, when the popularity parameter is present, by popularity key. Paginated;
// page*limit is capped at the upstream slice limit.
func (a *API) ListGamesHandler(c *gin.Context) {
	ctx := c.Request.Context()

	category := c.DefaultQuery("category", constants.CategoryAll)
	popularity := c.Query("popularity")
	limit := parsePositiveInt(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultQueryLimit)), constants.DefaultQueryLimit)
	page := parsePositiveInt(c.DefaultQuery("page", "1"), 1)

	if popularity != "" && !slices.Contains(constants.PopularityKeys, popularity) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown popularity key: " + popularity})
		return
	}
	if popularity == "" && !slices.Contains(constants.GameCategories, category) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown category: " + category})
		return
	}

	totalToFetch := limit * page
	if totalToFetch > constants.MaxGamesPerSlice {
		totalToFetch = constants.MaxGamesPerSlice
	}

	var result query.Result
	if popularity != "" {
		result = a.Queries.ByPopularity(ctx, popularity, totalToFetch)
	} else {
		result = a.Queries.ByCategory(ctx, category, totalToFetch)
	}

	games := paginate(result.Games, page, limit)
	totalPages := (len(result.Games) + limit - 1) / limit

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"total":      len(result.Games),
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
		"games":      games,
		"source":     result.Source,
		"degraded":   result.Degraded,
	})
}

// GameByIDHandler serves GET /api/games/:id.
func (a *API) GameByIDHandler(c *gin.Context) {
	id := c.Param("id")
	game, found := a.Queries.ByID(c.Request.Context(), id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "game not found: " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": game})
}

// SearchHandler serves GET /api/search?q=.
func (a *API) SearchHandler(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing search query"})
		return
	}
	limit := parsePositiveInt(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultQueryLimit)), constants.DefaultQueryLimit)

	result := a.Queries.Search(c.Request.Context(), q, limit)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"total":    len(result.Games),
		"games":    result.Games,
		"source":   result.Source,
		"degraded": result.Degraded,
	})
}

// CategoriesHandler serves GET /api/categories for nav rendering.
func (a *API) CategoriesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": constants.GameCategories,
		"popularity": constants.PopularityKeys,
	})
}

// CacheStatusHandler serves GET /api/cache: snapshot stats, metadata,
// validity, and scheduler state in one admin view.
func (a *API) CacheStatusHandler(c *gin.Context) {
	meta := a.Store.ReadMetadata()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cache": gin.H{
			"stats":     a.Queries.Stats(),
			"metadata":  meta,
			"isValid":   cache.IsValid(meta, time.Now(), a.App.CacheTTL),
			"scheduler": a.Sched.Status(),
		},
	})
}

type cacheActionRequest struct {
	Action string `json:"action"`
}

// CacheActionHandler serves POST /api/cache. "update" triggers a refresh,
// "status" returns the scheduler state. A refresh that is already in flight
// is a conflict, not a failure.
func (a *API) CacheActionHandler(c *gin.Context) {
	var req cacheActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	switch req.Action {
	case "update":
		util.LogInfo("Manual cache refresh triggered")
		snap, err := a.Sched.Refresh(c.Request.Context())
		switch {
		case errors.Is(err, scheduler.ErrRefreshRunning):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": scheduler.ErrRefreshRunning.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusOK, gin.H{
				"success":    true,
				"message":    "Cache refresh completed successfully",
				"totalGames": snap.TotalGames,
			})
		}

	case "status":
		c.JSON(http.StatusOK, gin.H{"success": true, "status": a.Sched.Status()})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid action. Supported actions: update, status"})
	}
}

// HealthzHandler reports process health and cache counters.
func (a *API) HealthzHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(a.App.StartTime)

	totalGames := 0
	if snap := a.Store.ReadSnapshot(); snap != nil {
		totalGames = snap.TotalGames
	}

	a.App.LimiterMutex.RLock()
	limiterCount := len(a.App.LimiterMap)
	a.App.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[a.App.IsProduction],
		"cached_games":    totalGames,
		"cache_valid":     cache.IsValid(a.Store.ReadMetadata(), time.Now(), a.App.CacheTTL),
		"active_limiters": limiterCount,
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func parsePositiveInt(val string, fallback int) int {
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func paginate(games []models.GameRecord, page, limit int) []models.GameRecord {
	start := (page - 1) * limit
	if start >= len(games) {
		return []models.GameRecord{}
	}
	end := start + limit
	if end > len(games) {
		end = len(games)
	}
	return games[start:end]
}

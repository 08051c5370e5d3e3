package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	cache "github.com/kingBirds/games-website/internal/cache"
	catalog "github.com/kingBirds/games-website/internal/catalog"
	constants "github.com/kingBirds/games-website/internal/constants"
	handlers "github.com/kingBirds/games-website/internal/handlers"
	models "github.com/kingBirds/games-website/internal/models"
	query "github.com/kingBirds/games-website/internal/query"
	scheduler "github.com/kingBirds/games-website/internal/scheduler"
	util "github.com/kingBirds/games-website/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting games catalog service in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	app := &models.App{
		IsProduction:     isProduction,
		StartTime:        time.Now(),
		CacheDir:         util.GetEnvString("CACHE_DIR", "data/cache"),
		CacheTTL:         util.GetEnvDuration("CACHE_TTL", 24*time.Hour),
		FetchTimeout:     util.GetEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchThrottle:    util.GetEnvDuration("FETCH_THROTTLE", 500*time.Millisecond),
		MaxGamesPerSlice: util.GetEnvInt("MAX_GAMES_PER_SLICE", constants.MaxGamesPerSlice),
		StaticCacheAge:   util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:     util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst:   util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL:   util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		LimiterMap:       make(map[string]*models.RateLimiterEntry),
	}

	if !util.DirExists(app.CacheDir) {
		util.LogInfo("Cache directory %s does not exist yet, it will be created on first refresh", app.CacheDir)
	}

	store := cache.NewStore(app.CacheDir)
	client := catalog.NewClient(app.FetchTimeout)
	sched := scheduler.New(store, client, app.FetchThrottle, app.MaxGamesPerSlice, app.CacheTTL)
	queries := query.NewService(store, client, app.CacheTTL)

	api := &handlers.API{App: app, Store: store, Queries: queries, Sched: sched}

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(applyCacheHeaders(app))

	router.GET(constants.RouteGames, api.ListGamesHandler)
	router.GET(constants.RouteGameByID, api.GameByIDHandler)
	router.GET(constants.RouteSearch, api.SearchHandler)
	router.GET(constants.RouteCategories, api.CategoriesHandler)
	router.GET(constants.RouteCache, api.CacheStatusHandler)
	router.POST(constants.RouteCache, rateLimitMiddleware(app), api.CacheActionHandler)
	router.GET(constants.RouteHealthz, api.HealthzHandler)

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()

	// Rebuild a cold or lapsed cache without blocking startup; readers fall
	// back to live fetches until the first commit lands.
	go sched.CheckAndRefresh(schedCtx)
	sched.Start(schedCtx, util.GetEnvDuration("REFRESH_CHECK_INTERVAL", 1*time.Hour))

	startLimiterCleanup(schedCtx, app)

	startServer(router, stopSched)
}

func startServer(router *gin.Engine, onShutdown func()) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		onShutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

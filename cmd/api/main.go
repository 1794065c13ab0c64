package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rewards-terminal/internal/config"
	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/handlers"
	"rewards-terminal/internal/middleware"
	"rewards-terminal/internal/services"
	"rewards-terminal/internal/telemetry"
)

const serviceName = "rewards-terminal"

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", serviceName).Logger()
	if envErr != nil {
		logger.Info().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	redisService, err := services.NewRedisService(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisService.Close()

	pool := pond.NewPool(cfg.WorkerPoolSize)
	defer pool.StopAndWait()

	rewardsAPI := gateway.NewHTTPGateway(cfg.RewardsAPIURL, cfg.RewardsAPIKey, cfg.RewardsAPITimeout, logger)
	if !rewardsAPI.Configured() {
		logger.Warn().Msg("REWARDS_API_URL not set, every rewards call will report the service as unavailable")
	}

	jwtService := services.NewJWTService(cfg)
	resolver := services.NewLootboxResolver(cfg.LootboxServerSeed)
	players := services.NewPlayerStateCache(rewardsAPI, logger)
	inventories := services.NewInventoryCache(rewardsAPI, logger)
	shop := services.NewShopCache(rewardsAPI, cfg.ShopCacheTTL, logger)
	uptime := services.NewUptimeRetryQueue(rewardsAPI, pool, cfg.UptimeRetryInterval, logger)
	lifecycle := services.NewSessionLifecycleTracker(players, inventories, uptime, pool, logger)

	hub := handlers.NewWebSocketHub(lifecycle, logger)
	coordinator := services.NewTransactionCoordinator(rewardsAPI, players, inventories, shop, resolver, hub, logger)
	spawn := services.NewSpawnService(rewardsAPI, players, inventories, hub, logger)

	limits := handlers.RateLimits{
		handlers.ActionPurchase: cfg.RateLimitPurchase,
		handlers.ActionClaim:    cfg.RateLimitClaim,
		handlers.ActionLootbox:  cfg.RateLimitLootbox,
	}
	wsHandler := handlers.NewWebSocketHandler(hub, coordinator, redisService, limits, logger)
	rewardsHandler := handlers.NewRewardsHandler(coordinator, resolver)
	userHandler := handlers.NewUserHandler(redisService, jwtService, logger)
	hostHandler := handlers.NewHostHandler(spawn, uptime, resolver)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())

	router.GET("/healthz", handlers.HealthHandler(redisService, uptime))

	host := router.Group("/host")
	host.Use(middleware.HostKeyMiddleware(cfg.HostAPIKey))
	{
		host.POST("/sessions", userHandler.CreateSession)
		host.POST("/players/:identity/spawn", hostHandler.RequestSpawn)
		host.POST("/players/:identity/starting-gear", hostHandler.StartingGear)
		host.POST("/round-restart", hostHandler.RoundRestart)
		host.POST("/lootbox/rotate-seed", hostHandler.RotateLootboxSeed)
		host.GET("/uptime/pending", hostHandler.PendingUptime)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService, redisService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.GET("/profile", rewardsHandler.GetProfile)
		protected.GET("/shop", rewardsHandler.GetShop)
		protected.GET("/calendar", rewardsHandler.GetCalendar)
		protected.GET("/inventory", rewardsHandler.GetInventory)

		protected.POST("/purchase",
			middleware.RateLimitMiddleware(redisService, handlers.ActionPurchase, cfg.RateLimitPurchase),
			rewardsHandler.Purchase)
		protected.POST("/claim",
			middleware.RateLimitMiddleware(redisService, handlers.ActionClaim, cfg.RateLimitClaim),
			rewardsHandler.ClaimReward)

		lootbox := protected.Group("/lootbox")
		{
			lootbox.POST("/open",
				middleware.RateLimitMiddleware(redisService, handlers.ActionLootbox, cfg.RateLimitLootbox),
				rewardsHandler.OpenLootbox)
			lootbox.GET("/seed-hash", rewardsHandler.GetLootboxSeedHash)
			lootbox.GET("/verify", rewardsHandler.VerifySequence)
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// Host tick loop: retries undelivered uptime once the interval has passed.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				uptime.Tick(gctx, now)
			}
		}
	})

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Sessions ended by the hub on shutdown get one delivery attempt before
	// the in-memory queue is lost. A drain started by the last tick may still
	// be putting retries back, so wait for it first.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	uptime.WaitIdle(drainCtx)
	if pending := uptime.Len(); pending > 0 {
		stats := uptime.Drain(drainCtx)
		logger.Info().
			Int("attempted", stats.Attempted).
			Int("delivered", stats.Delivered).
			Int("lost", stats.Requeued).
			Msg("final uptime drain")
	}

	return err
}

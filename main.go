package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"telegram-library/bot"
	"telegram-library/configs"
	"telegram-library/controllers"
	"telegram-library/services"
	"telegram-library/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file (overrides CONFIG_PATH)")
	listen := pflag.String("listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	mode := pflag.String("mode", "", "receive mode: webhook or polling (overrides MODE)")
	pflag.Parse()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	configs.InitLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st     store.Store
		client *mongo.Client
	)
	switch cfg.Store {
	case configs.StoreMemory:
		log.Warn().Msg("Using in-memory store, state is lost on restart")
		st = store.NewMemory()
	default:
		client, err = configs.ConnectDB(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		db := client.Database(cfg.MongoDatabase)
		if err := configs.SetupIndexes(db); err != nil {
			log.Warn().Err(err).Msg("Failed to setup indexes (continuing anyway)")
		}
		st = store.NewMongo(db)
	}

	tg, err := bot.NewClient(cfg.BotToken, cfg.SendRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bot")
	}
	log.Info().Str("username", tg.Username()).Msg("Bot authorized")

	audit := services.NewAudit(st)
	sanitizer := services.NewSanitizer(cfg.Branding)
	registry := services.NewRegistry(st, sanitizer)
	dispatcher := controllers.NewDispatcher(controllers.DispatcherDeps{
		Transport:      tg,
		Gate:           services.NewGate(st, st, tg, audit, cfg.MembershipTimeout),
		Registry:       registry,
		Ingestor:       services.NewIngestor(st, st, registry, audit, cfg.VaultChannelID),
		Searcher:       services.NewSearcher(st, audit),
		Audit:          audit,
		Courses:        st,
		Users:          st,
		AdminID:        cfg.AdminID,
		VaultChannelID: cfg.VaultChannelID,
	})

	pool := controllers.NewPool(cfg.Workers, dispatcher.Handle)
	pool.Start(ctx)

	var ready atomic.Bool
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	var webhook *controllers.WebhookController
	if cfg.Mode == configs.ModeWebhook {
		webhook = controllers.NewWebhookController(pool, cfg.WebhookSecret)
	}
	controllers.SetupRoutes(router, cfg.WebhookPath, webhook, func() bool {
		if !ready.Load() {
			return false
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return st.Ping(pingCtx) == nil
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("mode", cfg.Mode).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	if cfg.Mode == configs.ModePolling {
		go controllers.Poll(ctx, tg.Updates(60), pool)
	}
	ready.Store(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if cfg.Mode == configs.ModePolling {
		tg.StopPolling()
	}
	pool.Stop()
	cancel()

	if client != nil {
		if err := client.Disconnect(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}

	log.Info().Msg("Server exited gracefully")
}

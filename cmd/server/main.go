package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dailywin/backend/internal/activity"
	"github.com/dailywin/backend/internal/agency"
	"github.com/dailywin/backend/internal/aggregator"
	"github.com/dailywin/backend/internal/api"
	"github.com/dailywin/backend/internal/auth"
	"github.com/dailywin/backend/internal/cache"
	"github.com/dailywin/backend/internal/config"
	"github.com/dailywin/backend/internal/daily"
	"github.com/dailywin/backend/internal/event"
	"github.com/dailywin/backend/internal/metrics"
	"github.com/dailywin/backend/internal/quotes"
	"github.com/dailywin/backend/internal/realtime"
	"github.com/dailywin/backend/internal/scoreboard"
	"github.com/dailywin/backend/internal/storage"
	"github.com/dailywin/backend/internal/ticker"
	"github.com/dailywin/backend/internal/websocket"
	"github.com/dailywin/backend/pkg/eventbus"
	"github.com/dailywin/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const hourCachePruneInterval = 10 * time.Minute

// hourStore is where hourly counters live: Postgres or DynamoDB
type hourStore interface {
	scoreboard.RemoteStore
	daily.HourlyLister
}

// handlers groups everything the router mounts
type handlers struct {
	auth      *auth.Authenticator
	profiles  api.ProfileLoader
	ws        http.Handler
	events    *event.Receiver
	dashboard *api.DashboardHandler
	activity  *api.ActivityHandler
	hour      *api.HourHandler
	daily     *api.DailyHandler
	quotes    *api.QuotesHandler
	agency    *api.AgencyHandler
	admin     *api.AdminHandler
}

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Location.String()).
		Bool("skip_auth", cfg.SkipAuth).
		Msg("starting Daily Win backend server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	store, err := storage.Open(ctx, storage.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Hour cache: Redis when configured, otherwise in process
	var hourCache cache.HourCache
	if cfg.RedisAddr != "" {
		redisCache, client, err := cache.NewRedisHourCache(ctx, cache.RedisOptions{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.HourCacheTTL,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer client.Close()
		hourCache = redisCache
	} else {
		memCache := cache.NewMemoryHourCache(cfg.HourCacheTTL)
		go ticker.NewTicker("hour-cache-prune", hourCachePruneInterval, func(context.Context, time.Time) {
			if n := memCache.Prune(); n > 0 {
				log.Debug().Int("pruned", n).Msg("hour cache pruned")
			}
		}, log.Logger).Start(ctx)
		hourCache = memCache
	}

	// Hourly counters: DynamoDB when DYNAMO_MODE is set, otherwise Postgres
	var hourly hourStore = store
	if dynamoCfg := storage.LoadDynamoConfig(); dynamoCfg.Enabled() {
		dynamoStore, err := storage.NewDynamoHourlyStore(ctx, dynamoCfg, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize DynamoDB hourly store")
		}
		hourly = dynamoStore
	}

	// Change events: Postgres LISTEN plus the webhook receiver
	bus := eventbus.New(log.Logger)
	listener := realtime.NewListener(store.Pool(), cfg.RealtimeChannel, bus, log.Logger)
	go listener.Start(ctx)
	eventReceiver := event.NewReceiver(bus, cfg.WebhookSecret, log.Logger)

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run(ctx)

	// Dashboards refresh on change events and push through the hub
	dashboards := aggregator.NewService(store, aggregator.ServiceOptions{
		Location:    cfg.Location,
		IdleTimeout: cfg.DashboardIdleTimeout,
		Publisher:   hub,
		NewTrigger: func(agencyID, name string, refresh func(ctx context.Context)) aggregator.Trigger {
			return realtime.NewTrigger(bus, agencyID, name, refresh, log.Logger)
		},
	}, log.Logger)
	go dashboards.Start(ctx)

	hours := scoreboard.NewManager(ctx, hourly, hourCache, scoreboard.ManagerOptions{
		Location:    cfg.Location,
		Interval:    cfg.HourRolloverInterval,
		IdleTimeout: cfg.HourIdleTimeout,
		Publisher:   hub,
	}, log.Logger)
	go hours.Start(ctx)

	agencies := agency.NewService(store, cfg.Location, log.Logger)
	activities := activity.NewService(store, hours, cfg.Location, log.Logger)
	planner := daily.NewService(store, hourly, cfg.Location, log.Logger)
	book := quotes.NewService(store, log.Logger)

	authenticator := auth.New(auth.Options{
		JWKSURL:         cfg.JWKSURL,
		VerifySignature: cfg.VerifySignature,
		SkipAuth:        cfg.SkipAuth,
	}, log.Logger)

	r := newRouter(cfg, handlers{
		auth:      authenticator,
		profiles:  agencies,
		ws:        websocket.NewHandler(hub, cfg, dashboards, hours, agencies, log.Logger),
		events:    eventReceiver,
		dashboard: api.NewDashboardHandler(dashboards, cfg.Location, log.Logger),
		activity:  api.NewActivityHandler(activities, log.Logger),
		hour:      api.NewHourHandler(hours, log.Logger),
		daily:     api.NewDailyHandler(planner, log.Logger),
		quotes:    api.NewQuotesHandler(book, cfg.Location, log.Logger),
		agency:    api.NewAgencyHandler(agencies, log.Logger),
		admin:     api.NewAdminHandler(agencies, log.Logger),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().
		Int64("open_connections", metrics.Get().GetActiveConnections()).
		Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop background loops, then let queued hour writes land
	cancel()
	hours.Wait()
	bus.Wait()

	log.Info().Msg("server stopped")
}

// newRouter mounts every route on a chi router
func newRouter(cfg *config.Config, h handlers) http.Handler {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes for the database change webhook
	r.Route("/internal", func(r chi.Router) {
		r.Post("/changes", h.events.HandleChange)
		r.Get("/changes/stats", h.events.GetStats)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Get("/ws", h.ws.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Use(api.ProfileMiddleware(h.profiles, log.Logger))

			// Available before joining an agency
			r.Get("/me", h.agency.GetMe)
			r.Get("/agencies", h.agency.ListAgencies)
			r.Post("/agencies", h.agency.CreateAgency)
			r.Post("/agencies/{id}/join", h.agency.JoinAgency)

			r.Get("/activity", h.activity.GetToday)
			r.Post("/activity/delta", h.activity.ApplyDelta)
			r.Post("/activity/quote", h.activity.LogQuote)
			r.Post("/activity/callback", h.activity.LogCallback)
			r.Get("/activity/feed", h.activity.GetFeed)

			r.Get("/hour", h.hour.GetHour)
			r.Post("/hour/delta", h.hour.ApplyDelta)

			r.Get("/daily-review", h.daily.GetReview)
			r.Get("/goals", h.daily.GetGoals)
			r.Put("/goals", h.daily.SaveGoals)

			r.Get("/metrics/personal", h.dashboard.GetPersonalMetrics)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireAgency)

				r.Get("/dashboard", h.dashboard.GetDashboard)
				r.Get("/dashboard/export", h.dashboard.ExportDashboard)

				r.Get("/quotes", h.quotes.ListQuotes)
				r.Get("/quotes/{id}", h.quotes.GetQuote)
				r.Put("/quotes/{id}", h.quotes.UpdateQuote)

				r.Get("/dnc-days/today", h.agency.GetHolidayToday)

				r.Group(func(r chi.Router) {
					r.Use(api.RequireAdmin)
					r.Get("/dnc-days", h.admin.ListDNCDays)
					r.Post("/dnc-days", h.admin.CreateDNCDay)
					r.Put("/dnc-days/{id}", h.admin.UpdateDNCDay)
					r.Delete("/dnc-days/{id}", h.admin.DeleteDNCDay)
				})
			})
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"dailywin-backend"}`)
}

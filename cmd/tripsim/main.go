// README: Entry point; loads config, wires services, starts the hub and HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tripsim/internal/audit"
	"tripsim/internal/config"
	httptransport "tripsim/internal/http"
	"tripsim/internal/infra"
	"tripsim/internal/logging"
	"tripsim/internal/maps"
	"tripsim/internal/modules/matching"
	"tripsim/internal/modules/trip"
	"tripsim/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(log)
	trips := trip.NewService(log, hub, cfg.StrictCancel)

	var archive audit.Archive = audit.NewMemoryArchive()
	if cfg.Audit.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.Audit.DSN)
		if err != nil {
			log.Error("postgres init failed", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		archive = audit.NewPostgresArchive(dbPool)
		log.Info("offer audit archive enabled")
	}

	match := matching.NewService(log, trips, hub, archive, cfg.Offer.TTL)

	var locator ws.DriverLocator
	if cfg.Redis.Addr != "" {
		store := matching.NewStore(infra.NewRedis(cfg.Redis.Addr))
		match.WithDriverIndex(store, 0)
		locator = store
		log.Info("driver geo index enabled", "redis", cfg.Redis.Addr)
	}

	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Error("maps init failed", "error", err)
			os.Exit(1)
		}
		match.WithEstimator(routes)
		log.Info("directions estimator enabled")
	}

	gateway := ws.NewGateway(log, trips, match, locator)
	go hub.Run(ctx)

	server := httptransport.NewServer(httptransport.ServerDeps{
		Trips:   trips,
		Hub:     hub,
		Gateway: gateway,
		Log:     log,
	})
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: server.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr, "offer_ttl", cfg.Offer.TTL.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eshop.dev/internal/auth"
	"eshop.dev/internal/config"
	"eshop.dev/internal/database"
	"eshop.dev/internal/httpapi"
	"eshop.dev/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	store := auth.NewPGStore(db)

	issuer, err := auth.NewIssuer([]byte(cfg.AuthSecret),
		auth.WithIssuerName(cfg.TokenIssuer),
		auth.WithAudience(cfg.TokenAudience),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
	)
	if err != nil {
		// A missing or weak signing key is a security defect, not a
		// recoverable runtime condition.
		log.Fatalf("token issuer: %v", err)
	}

	refresh := auth.NewRefreshManager(store.Identities(),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL))

	svc, err := auth.NewService(store, issuer, refresh,
		auth.WithEmailPolicy(auth.EmailPolicy{AllowedDomains: cfg.AllowedEmailDomains}))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// Seeding must complete before the listener starts; it is not re-entrant
	// with live traffic.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()
	bootstrapper := auth.NewBootstrapper(store, cfg.AdminEmail, cfg.AdminPassword).
		WithLogger(func(event string, fields map[string]any) {
			obs.LogEvent("info", event, fields)
		})
	if err := bootstrapper.Run(bootCtx); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, auth.NewGate(issuer))
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting eshop-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

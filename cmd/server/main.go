// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/percussion/percussioncms-sub111/internal/activity"
	"github.com/percussion/percussioncms-sub111/internal/config"
	"github.com/percussion/percussioncms-sub111/internal/content"
	"github.com/percussion/percussioncms-sub111/internal/db"
	"github.com/percussion/percussioncms-sub111/internal/directory"
	"github.com/percussion/percussioncms-sub111/internal/email"
	"github.com/percussion/percussioncms-sub111/internal/ems"
	"github.com/percussion/percussioncms-sub111/internal/ratelimit"
	"github.com/percussion/percussioncms-sub111/internal/scheduler"
	"github.com/percussion/percussioncms-sub111/internal/users"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// services holds everything the handlers and the scheduler share.
type services struct {
	users    *users.Service
	content  *content.Service
	activity *activity.Service
	ems      *ems.Service
	limiter  *ratelimit.Limiter
}

func buildServices(ctx context.Context, cfg *config.Config, database *db.DB) (*services, error) {
	opts := users.Options{
		AppName:       cfg.App.Name,
		BaseURL:       cfg.App.BaseURL,
		ResetTTL:      time.Duration(cfg.Security.ResetTokenTTLMinutes) * time.Minute,
		DefaultRegion: cfg.LDAP.DefaultRegion,
	}
	if cfg.LDAP.Enabled {
		opts.Directory = directory.NewClient(cfg.LDAP)
		log.Info().Str("url", cfg.LDAP.URL).Msg("LDAP directory enabled")
	}
	if cfg.Email.Enabled {
		sender, err := email.NewSESClient(ctx, cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		opts.Mailer = sender
		log.Info().Str("region", cfg.Email.Region).Msg("SES email enabled")
	}

	svc := &services{
		users:   users.NewService(database, opts),
		content: content.NewService(database),
		activity: activity.NewService(database.Queries, activity.Options{
			Location:   cfg.Location(),
			WeekStart:  cfg.Activity.Weekday(),
			MaxBuckets: cfg.Activity.MaxBuckets,
		}),
		limiter: ratelimit.New(ratelimit.ConfigFromSecurity(cfg.Security)),
	}

	// Without endpoints every EMS call fails with ems.ErrNotConfigured.
	svc.ems = ems.NewService(ems.NewClient(cfg.EMS, cfg.Location(), nil), cfg.EMS.CacheTTL())
	if cfg.EMS.Enabled() {
		log.Info().
			Str("api_url", cfg.EMS.APIURL).
			Str("master_calendar_url", cfg.EMS.MasterCalendarURL).
			Msg("EMS proxy enabled")
	}

	return svc, nil
}

func startScheduler(cfg *config.Config, svc *services) error {
	if err := scheduler.Init(); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched, err := scheduler.ServiceInstance()
	if err != nil {
		return err
	}

	m := scheduler.Maintenance{
		Resets:        svc.users,
		Traffic:       svc.activity,
		RetentionDays: cfg.Activity.RetentionDays,
		Schedule:      cfg.Scheduler,
	}
	if cfg.EMS.Enabled() {
		m.EMS = svc.ems
	}
	if _, err := scheduler.RegisterMaintenanceJobs(sched, m); err != nil {
		return err
	}
	sched.Start()
	return nil
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "config/app.yaml"), "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build services")
	}
	defer svc.limiter.Close()

	initHandlers(cfg, svc)

	if err := startScheduler(cfg, svc); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server := newServer(cfg)
	shutdownTimeout := time.Duration(cfg.App.ShutdownTimeoutSeconds) * time.Second

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown failed")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

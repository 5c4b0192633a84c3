/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/api"
	"github.com/friendsincode/taskslot/internal/cache"
	"github.com/friendsincode/taskslot/internal/calendar"
	"github.com/friendsincode/taskslot/internal/config"
	"github.com/friendsincode/taskslot/internal/db"
	"github.com/friendsincode/taskslot/internal/eventbus"
	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/leadership"
	"github.com/friendsincode/taskslot/internal/planner"
	"github.com/friendsincode/taskslot/internal/reminders"
	"github.com/friendsincode/taskslot/internal/telemetry"
	"github.com/friendsincode/taskslot/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	bus       *events.Bus
	natsBus   *eventbus.NATSBus
	store     *calendar.Store
	planner   *planner.Service
	reminders *reminders.Service
	election  *leadership.Election
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("taskslot-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.ProfileTTL = s.cfg.PreferenceCacheTTL
		profileCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = profileCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	natsCfg := eventbus.DefaultNATSConfig()
	natsCfg.URL = s.cfg.NATSURL
	if s.cfg.NATSSubject != "" {
		natsCfg.Subject = s.cfg.NATSSubject
	}
	s.natsBus, err = eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
	if err != nil {
		return fmt.Errorf("connect event bus: %w", err)
	}
	s.DeferClose(func() error { return s.natsBus.Close() })

	s.store = calendar.NewStore(database, s.cache, s.natsBus, s.cfg.DefaultPreferences, s.cfg.Location, s.logger)
	s.planner = planner.New(database, s.store, s.natsBus, planner.Config{
		ReminderLead:        s.cfg.ReminderLead,
		PlanningHorizonDays: s.cfg.PlanningHorizonDays,
		FallbackPolicy:      s.cfg.FallbackPolicy,
		AllocationRule:      s.cfg.AllocationRule,
	}, s.logger)
	s.reminders = reminders.New(database, s.natsBus, reminders.Config{
		Schedule:       s.cfg.ReminderSchedule,
		SnoozeDuration: s.cfg.SnoozeDuration,
		Location:       s.cfg.Location,
	}, s.logger)

	if s.cfg.LeaderElectionEnabled {
		electionCfg := leadership.DefaultConfig()
		electionCfg.RedisAddr = s.cfg.RedisAddr
		electionCfg.RedisPassword = s.cfg.RedisPassword
		electionCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.InstanceID != "" {
			electionCfg.InstanceID = s.cfg.InstanceID
		}
		s.election, err = leadership.NewElection(electionCfg, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		s.DeferClose(func() error { return s.election.Close() })
		s.reminders.SetLeader(s.election)

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionCfg.InstanceID).
			Msg("leader election enabled for reminder dispatch")
	}

	s.api = api.New([]byte(s.cfg.JWTSigningKey), s.store, s.planner, s.reminders, api.EngineDefaults{
		Location:       s.cfg.Location,
		FallbackPolicy: s.cfg.FallbackPolicy,
		AllocationRule: s.cfg.AllocationRule,
		HorizonDays:    s.cfg.PlanningHorizonDays,
		Preferences:    s.cfg.DefaultPreferences,
	}, s.logger)
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.election != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.election.Run(ctx)
		}()
	}

	if s.reminders != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.reminders.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("reminder dispatcher exited")
			}
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached profiles when another instance
// reports a preference change over NATS.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	updated := s.bus.Subscribe(events.EventPreferencesUpdated)
	defer s.bus.Unsubscribe(events.EventPreferencesUpdated, updated)

	s.logger.Info().Msg("cache invalidation listener started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload, ok := <-updated:
			if !ok {
				return
			}
			if userID, ok := payload["user_id"].(string); ok && userID != "" {
				if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
					s.logger.Debug().Err(err).Str("user_id", userID).Msg("invalidate profile")
				}
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Leader  *bool  `json:"leader,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.Version}
	status := http.StatusOK

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if s.election != nil {
		leader := s.election.IsLeader()
		resp.Leader = &leader
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

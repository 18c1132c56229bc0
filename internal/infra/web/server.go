package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/infra/metrics"
)

// LoginLimiter throttles login attempts per remote address. *redis.RateLimiter implements it.
type LoginLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const (
	loginAttemptsPerMinute = 10
	requestTimeout         = 30 * time.Second
)

// Server is the admin HTTP API.
type Server struct {
	facade *application.BotFacade
	bot    *config.BotConfig
	apiKey string
	auth   *AuthManager

	loginBucket *rate.Limiter
	limiter     LoginLimiter
	log         *zerolog.Logger

	srv *http.Server
}

// NewServer builds the admin API. An empty JWT secret gets a random one, so
// sessions do not survive a restart. limiter may be nil.
func NewServer(
	facade *application.BotFacade,
	botCfg *config.BotConfig,
	adminCfg config.AdminConfig,
	secureCookies bool,
	limiter LoginLimiter,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "admin_api").Logger()
	secret := adminCfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		l.Warn().Msg("admin.jwt_secret is empty, using an ephemeral secret")
	}
	ttl := adminCfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Server{
		facade:      facade,
		bot:         botCfg,
		apiKey:      adminCfg.APIKey,
		auth:        NewAuthManager(secret, secureCookies, ttl),
		loginBucket: rate.NewLimiter(rate.Every(time.Second), 5),
		limiter:     limiter,
		log:         &l,
	}
}

// Routes returns the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/stats", s.handleStats)
			r.Get("/recipients", s.handleRecipients)
			r.Get("/export.csv", s.handleExportCSV)
			r.Post("/broadcast", s.handleBroadcast)
			r.Post("/recall", s.handleRecall)
		})
	})
	return r
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("admin API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

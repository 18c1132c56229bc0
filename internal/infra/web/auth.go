package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"
	red "telegram-storefront-bot/internal/infra/redis"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct{ cfg AuthConfig }

func NewAuthManager(secret string, secure bool, ttl time.Duration) *AuthManager {
	return &AuthManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		CookieName:   "admin_session",
		SecureCookie: secure,
		TTL:          ttl,
	}}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint signs a session token and sets it as a cookie on w.
func (a *AuthManager) Mint(w http.ResponseWriter) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.cfg.TTL)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   "admin",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, exp, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

var errMissingToken = errors.New("missing token")

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		scheme, tok, ok := strings.Cut(hdr, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return nil, errors.New("malformed authorization header")
		}
		return a.parse(strings.TrimSpace(tok))
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// authMiddleware admits requests carrying a valid session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin trades the admin API key for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		metrics.IncAdminLogin("disabled")
		writeError(w, http.StatusForbidden, "login disabled")
		return
	}
	if !s.allowLogin(r) {
		metrics.IncAdminLogin("throttled")
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		metrics.IncAdminLogin("denied")
		l := logging.With(r.Context(), s.log)
		l.Warn().Str("remote", remoteHost(r)).Msg("admin login denied")
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	token, exp, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint admin token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	metrics.IncAdminLogin("ok")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.UTC()})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// allowLogin applies the process-wide bucket, then the per-address Redis
// window when one is configured.
func (s *Server) allowLogin(r *http.Request) bool {
	if !s.loginBucket.Allow() {
		return false
	}
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), red.LoginKey(remoteHost(r)), loginAttemptsPerMinute, time.Minute)
	if err != nil {
		s.log.Warn().Err(err).Msg("login limiter unavailable")
		return true
	}
	return ok
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

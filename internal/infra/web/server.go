package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/usecase"
)

// RateLimiter caps request rates per portal client.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	voucherUC usecase.VoucherUseCase
	limiter   RateLimiter
	rateLimit int
	rateWin   time.Duration
	apiKey    string
	log       *zerolog.Logger
}

func NewServer(
	voucherUC usecase.VoucherUseCase,
	limiter RateLimiter,
	rateLimit int,
	rateWindow time.Duration,
	adminAPIKey string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "web").Logger()
	return &Server{
		voucherUC: voucherUC,
		limiter:   limiter,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
		apiKey:    adminAPIKey,
		log:       &srvLog,
	}
}

// RegisterRoutes sets up the portal-facing and admin routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/v1/vouchers/purchase", s.rateLimited("purchase", purchaseHandler(s.voucherUC)))
	mux.Handle("/api/v1/vouchers/redeem", s.rateLimited("redeem", redeemHandler(s.voucherUC)))
	mux.Handle("/api/v1/payments/callback", callbackHandler(s.voucherUC, s.log))

	adminRouter := s.authMiddleware(s.adminVouchersRouter())
	mux.Handle("/api/v1/admin/vouchers", adminRouter)
	mux.Handle("/api/v1/admin/vouchers/", adminRouter)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// rateLimited applies the fixed-window limit per client IP and operation.
// A limiter outage never blocks the portal; requests pass through.
func (s *Server) rateLimited(op string, next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "rate_limit:" + clientIP(r) + ":" + op
		ok, err := s.limiter.Allow(r.Context(), key, s.rateLimit, s.rateWin)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// adminVouchersRouter acts as a sub-router for /api/v1/admin/vouchers
func (s *Server) adminVouchersRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/vouchers")
		path = strings.Trim(path, "/")

		if path == "" { // /api/v1/admin/vouchers
			switch r.Method {
			case http.MethodGet:
				vouchersListHandler(s.voucherUC)(w, r)
			case http.MethodPost:
				vouchersSeedHandler(s.voucherUC)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// /api/v1/admin/vouchers/{code}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		voucherGetHandler(s.voucherUC, path)(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

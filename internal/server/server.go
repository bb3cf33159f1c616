// Package server mounts every feature handler on one HTTP server.
// server.go owns the route table and the middleware order.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/auth"
	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/config"
	"alchemyst.ke/billing/internal/features/expiration"
	"alchemyst.ke/billing/internal/features/payments"
	"alchemyst.ke/billing/internal/features/subscription"
	"alchemyst.ke/billing/internal/features/wallet"
	"alchemyst.ke/billing/internal/server/middleware"
)

// Handlers groups the feature handlers the server routes to.
type Handlers struct {
	Wallet       *wallet.Handler
	Subscription *subscription.Handler
	Payments     *payments.Handler
	Hub          *payments.Hub
	Expiration   *expiration.Handler
}

// Server is the HTTP front of the billing service.
type Server struct {
	http    *http.Server
	limiter *middleware.RateLimiter
	wait    time.Duration
}

// New builds the server and its route table.
func New(cfg *config.Config, h Handlers, resolver auth.Resolver) (*Server, error) {
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		limiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		wait:    cfg.HTTPShutdownWait,
	}

	authed := auth.Require(resolver)
	timeout := middleware.Timeout(cfg.HTTPRequestTimeout)
	// the sweep may legitimately outlast a normal request
	sweepTimeout := middleware.Timeout(cfg.SweepLockTTL)

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc, wrap ...func(http.Handler) http.Handler) {
		var handler http.Handler = fn
		for i := len(wrap) - 1; i >= 0; i-- {
			handler = wrap[i](handler)
		}
		mux.Handle(pattern, handler)
	}

	// Subscription lifecycle
	route("POST /user/subscribe", h.Subscription.HandleSubscribe, timeout, authed)
	route("POST /user/upgrade", h.Subscription.HandleUpgrade, timeout, authed)
	route("POST /user/renew", h.Subscription.HandleRenew, timeout, authed)
	route("POST /user/auto-renew", h.Subscription.HandleAutoRenew, timeout, authed)
	route("POST /user/cancel", h.Subscription.HandleCancel, timeout, authed)
	route("GET /user/package", h.Subscription.HandleCurrent, timeout, authed)

	// Wallet
	route("POST /mpesa/update-balance", h.Wallet.HandleCredit, s.limiter.Limit, timeout, authed)
	route("GET /mpesa/wallet/balance", h.Wallet.HandleBalance, timeout, authed)
	route("GET /mpesa/wallet/history", h.Wallet.HandleHistory, timeout, authed)
	route("GET /mpesa/wallet/reconcile", h.Wallet.HandleReconcile, timeout, authed)

	// Payment provider
	route("POST /mpesa/callback", h.Payments.HandleCallback, s.limiter.Limit, timeout)
	route("GET /ws", h.Hub.ServeWS)

	// External scheduler
	route("POST /user/check-expirations", h.Expiration.HandleCheckExpirations, sweepTimeout)

	route("GET /healthz", handleHealth)

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.Recover(middleware.RealIP(proxies)(middleware.LogRequests(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	common.WriteOK(w, "ok", nil)
}

// Handler exposes the full middleware chain, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests for at most the configured wait.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Close()

	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	return s.http.Shutdown(ctx)
}

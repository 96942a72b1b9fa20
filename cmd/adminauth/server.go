package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/bootstrap"
	"github.com/tendant/proxy-admin-auth/pkg/metrics"
	"github.com/tendant/proxy-admin-auth/pkg/router"
)

// setupServer mounts health, metrics and the console API on r. Request
// metrics and client info apply to the API group only.
func setupServer(r *chi.Mux, services *bootstrap.Services, loginLimiter func(http.Handler) http.Handler) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware)
		r.Use(audit.ClientInfoMiddleware)
		router.SetupRoutes(r, router.Config{
			LoginHandle:  services.LoginHandle,
			TwoFAHandle:  services.TwoFAHandle,
			Tokens:       services.Tokens,
			LoginLimiter: loginLimiter,
		})
	})
}

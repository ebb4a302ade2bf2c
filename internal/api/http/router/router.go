// Package router wires the storefront routes and middleware.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/flavourmarket/internal/api/http/handler"
	"github.com/dtroode/flavourmarket/internal/api/http/middleware"
	"github.com/dtroode/flavourmarket/internal/logger"
)

// Instrumenter records request metrics and serves them.
type Instrumenter interface {
	InstrumentHandler(next http.Handler) http.Handler
	Handler() http.Handler
}

// Router represents the HTTP router of the storefront.
type Router struct {
	handler     *handler.Handler
	session     *middleware.Session
	rateLimiter *middleware.RateLimiter
	metrics     Instrumenter
	ctxManager  middleware.ClientManager
	logger      *logger.Logger
}

// New creates new Router instance.
func New(
	handler *handler.Handler,
	session *middleware.Session,
	rateLimiter *middleware.RateLimiter,
	metrics Instrumenter,
	ctxManager middleware.ClientManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		handler:     handler,
		session:     session,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		ctxManager:  ctxManager,
		logger:      logger,
	}
}

// Register builds the route tree. Pages below the guard require a signed-in identity;
// health and metrics bypass the browser session.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	recoverer := middleware.NewRecover(r.handler.Panic, r.logger)
	h := r.handler

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(logging.Handle)
	router.Use(r.metrics.InstrumentHandler)
	router.Use(recoverer.Handle)

	router.Get("/health", h.Health)
	router.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	router.NotFound(r.session.Handle(http.HandlerFunc(h.NotFound)).ServeHTTP)

	router.Group(func(router chi.Router) {
		router.Use(r.session.Handle)

		router.Get("/", h.Home)
		router.Get("/browse", h.Browse)
		router.Get("/browse/{id}", h.Listing)

		router.Group(func(router chi.Router) {
			router.Use(r.rateLimiter.Handle)
			router.Get("/login", h.LoginPage)
			router.Post("/login", h.Login)
			router.Get("/signup", h.SignupPage)
			router.Post("/signup", h.Signup)
		})
		router.Post("/logout", h.Logout)

		router.Group(func(router chi.Router) {
			router.Use(middleware.RequireIdentity(r.ctxManager))

			router.Post("/browse/{id}/purchase", h.Purchase)

			router.Get("/sell", h.Sell)
			router.Post("/sell", h.CreateListing)
			router.Get("/sell/edit/{id}", h.EditListing)
			router.Post("/sell/edit/{id}", h.UpdateListing)
			router.Post("/sell/{id}/activate", h.ActivateListing)
			router.Post("/sell/{id}/deactivate", h.DeactivateListing)

			router.Get("/profile", h.Profile)
			router.Get("/wallet", h.Wallet)
			router.Post("/wallet/deposit", h.Deposit)
		})
	})

	return router
}

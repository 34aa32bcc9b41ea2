package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketing-backend/internal/config"
	"marketing-backend/internal/handler"
	"marketing-backend/internal/metrics"
	"marketing-backend/internal/middleware"
	"marketing-backend/internal/model"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	Content    *handler.ContentHandler
	Contact    *handler.ContactHandler
	Newsletter *handler.NewsletterHandler
	Analytics  *handler.AnalyticsHandler
	AI         *handler.AIHandler
	Health     *handler.HealthHandler
	Websocket  http.Handler
}

func New(cfg *config.Config, auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(m.Instrument)
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	staff := []model.Role{model.RoleAdmin, model.RoleManager}
	authenticated := auth.RequireAuth

	r.Route("/api/v1", func(api chi.Router) {
		// The websocket hijacks the connection and cannot sit behind
		// http.TimeoutHandler.
		if h.Websocket != nil {
			api.With(middleware.QueryToken("access_token"), authenticated, auth.RequireRoles(staff...)).
				Method(http.MethodGet, "/ws", h.Websocket)
		}

		// An AI call may spend the executor's whole retry budget.
		api.Group(func(gen chi.Router) {
			gen.Use(middleware.Timeout(cfg.AIRouteTimeout()))
			gen.Use(authenticated, auth.RequireRoles(model.RoleAdmin, model.RoleManager, model.RoleEmployee))
			gen.Post("/ai/generate", h.AI.Generate)
			gen.Get("/ai/kinds", h.AI.Kinds)
		})

		api.Group(func(v1 chi.Router) {
			v1.Use(middleware.Timeout(cfg.RequestTimeout))

			v1.Route("/auth", func(a chi.Router) {
				a.Post("/login", h.Auth.Login)
				a.Post("/refresh", h.Auth.Refresh)
				a.With(authenticated).Post("/logout", h.Auth.Logout)
				a.With(authenticated).Post("/logout-all", h.Auth.LogoutAll)
				a.With(authenticated).Get("/me", h.Auth.Me)
				a.With(authenticated).Put("/password", h.Auth.ChangePassword)
			})

			v1.Route("/users", func(u chi.Router) {
				u.Use(authenticated, auth.RequireRoles(model.RoleAdmin))
				u.Get("/", h.User.List)
				u.Post("/", h.User.Create)
				u.Get("/{id}", h.User.Get)
				u.Put("/{id}", h.User.Update)
				u.Delete("/{id}", h.User.Delete)
			})

			v1.Route("/{collection:services|projects|team|testimonials}", func(c chi.Router) {
				c.With(auth.OptionalAuth).Get("/", h.Content.List)
				c.With(auth.OptionalAuth).Get("/{id}", h.Content.Get)
				c.With(authenticated, auth.RequireRoles(staff...)).Post("/", h.Content.Create)
				c.With(authenticated, auth.RequireRoles(staff...)).Put("/{id}", h.Content.Update)
				c.With(authenticated, auth.RequireRoles(staff...)).Delete("/{id}", h.Content.Delete)
			})

			v1.Route("/contact", func(c chi.Router) {
				c.Post("/", h.Contact.Submit)
				c.With(authenticated, auth.RequireRoles(staff...)).Get("/", h.Contact.List)
				c.With(authenticated, auth.RequireRoles(staff...)).Put("/{id}/status", h.Contact.UpdateStatus)
			})

			v1.Route("/newsletter", func(n chi.Router) {
				n.Post("/subscribe", h.Newsletter.Subscribe)
				n.Post("/unsubscribe", h.Newsletter.Unsubscribe)
				n.With(authenticated, auth.RequireRoles(staff...)).Get("/subscribers", h.Newsletter.List)
			})

			v1.Route("/analytics", func(a chi.Router) {
				a.Post("/events", h.Analytics.Track)
				a.With(authenticated, auth.RequireRoles(staff...)).Get("/summary", h.Analytics.Summary)
			})
		})
	})

	return r
}

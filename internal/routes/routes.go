package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/handlers"
	"github.com/pittsbowling/api/internal/metrics"
	"github.com/pittsbowling/api/internal/middleware"
	"github.com/pittsbowling/api/internal/repositories"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	oauthHandler *handlers.OAuthHandler,
	laneHandler *handlers.LaneHandler,
	reservationHandler *handlers.ReservationHandler,
	notificationHandler *handlers.NotificationHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
) {
	loginLimit := middleware.RateLimitByIP(middleware.LoginRateLimit())
	resendLimit := middleware.RateLimitByIP(middleware.ResendRateLimit())

	router.Handle("/metrics", metrics.Handler())

	// Public routes - no authentication required
	router.With(loginLimit).Post("/auth/register", authHandler.Register)
	router.Post("/auth/confirm-email", authHandler.ConfirmEmail)
	router.With(loginLimit).Post("/auth/login", authHandler.Login)
	router.With(loginLimit).Post("/auth/verify-code", authHandler.VerifyCode)
	router.With(resendLimit).Post("/auth/resend-code", authHandler.ResendCode)
	router.Post("/auth/refresh", authHandler.Refresh)
	router.Post("/auth/logout", authHandler.Logout)
	router.With(resendLimit).Post("/auth/forgot-password", authHandler.ForgotPassword)
	router.With(loginLimit).Post("/auth/reset-password", authHandler.ResetPassword)

	router.Get("/auth/google", oauthHandler.GoogleRedirect)
	router.Get("/auth/google/callback", oauthHandler.GoogleCallback)

	router.Get("/lanes", laneHandler.List)
	router.Get("/lanes/availability", laneHandler.Availability)
	router.Get("/lanes/day-grid", laneHandler.DayGrid)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthRequired(tokenManager, userRepo))

		r.Get("/auth/session", authHandler.Session)
		r.Get("/auth/me", authHandler.Session)
		r.Get("/auth/admin-check", authHandler.AdminCheck)

		r.Post("/reservations/checkout", reservationHandler.Checkout)
		r.Get("/reservations/mine", reservationHandler.Mine)
		r.Get("/reservations/{id}", reservationHandler.Get)

		r.Get("/notifications", notificationHandler.List)
		r.Get("/notifications/unread", notificationHandler.UnreadCount)
		r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
		r.Post("/notifications/read-all", notificationHandler.MarkAllRead)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))

			r.Post("/admin/lanes", laneHandler.Create)
			r.Put("/admin/lanes/{id}", laneHandler.Update)
			r.Delete("/admin/lanes/{id}", laneHandler.Deactivate)

			r.Get("/admin/reservations", reservationHandler.AdminList)
			r.Get("/admin/reservations/pending-count", reservationHandler.AdminPendingCount)
			r.Get("/admin/reservations/{id}", reservationHandler.AdminGet)
			r.Put("/admin/reservations/{id}/status", reservationHandler.AdminUpdateStatus)
			r.Delete("/admin/reservations/{id}", reservationHandler.AdminDelete)
		})
	})
}

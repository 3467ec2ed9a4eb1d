package http

import (
	"net/http"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.With(a.authMiddleware).Get("/me", a.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.authMiddleware)
			r.Use(requireRole(auth.RoleTherapist))

			r.Route("/therapist", func(r chi.Router) {
				r.Get("/dashboard", a.handleTherapistDashboard)
				r.Get("/clients", a.handleListClients)
				r.Post("/clients", a.handleCreateClient)
				r.Get("/clients/{id}", a.handleClientDetails)
				r.Post("/goals", a.handleCreateGoal)
				r.Post("/notes", a.handleCreateNote)
			})
			r.Route("/reports/{clientID}/{week}", func(r chi.Router) {
				r.Get("/", a.handleDownloadReport)
				r.Post("/email", a.handleEmailReport)
			})
		})

		r.Route("/client", func(r chi.Router) {
			r.Use(a.authMiddleware)
			r.Use(requireRole(auth.RoleClient))
			r.Get("/dashboard", a.handleClientDashboard)
			r.Post("/checkin", a.handleSubmitCheckin)
			r.Get("/progress", a.handleClientProgress)
			r.Post("/missions/{id}/complete", a.handleCompleteMission)
			r.Get("/reminders", a.handleListReminders)
			r.Post("/reminders", a.handleCreateReminder)
			r.Delete("/reminders/{id}", a.handleDeleteReminder)
		})
	})

	return r
}

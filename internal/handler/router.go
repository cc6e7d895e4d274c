package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/luckyspin/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса luckyspin.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.RequestMetrics(h.Metrics))
	r.Use(custommiddleware.ClientID)
	r.Use(custommiddleware.UserCache)
	r.Use(h.authMiddleware.Optional)

	r.Get("/", h.Index)
	r.Get("/sw.js", h.ServiceWorker)
	r.Get("/ws", h.Live)

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}
	if h.Assets != nil {
		r.Handle("/assets/*", http.StripPrefix("/assets", http.FileServer(h.Assets)))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/site", h.Site)
		r.Get("/games", h.Games)
		r.Get("/games/{id}/play", h.Play)
		r.Get("/carousel", h.Slides)
		r.Post("/carousel/select", h.SelectSlide)
		r.Get("/deposit/methods/{method}", h.PaymentAddress)
		r.Post("/navigate", h.Navigate)
		r.Post("/pwa/{event}", h.InstallEvent)

		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/bonus/claim", h.ClaimBonus)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/account", h.Account)
				r.Get("/referral", h.Referral)
				r.Get("/rewards", h.Rewards)
				r.Get("/deposits", h.Deposits)

				r.Post("/deposit", h.Deposit)
				r.Post("/withdraw", h.Withdraw)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

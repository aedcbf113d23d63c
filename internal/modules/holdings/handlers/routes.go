package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stock routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.HandleGetState)
		r.Post("/reset", h.HandleReset)

		r.Route("/holdings", func(r chi.Router) {
			r.Get("/", h.HandleListHoldings)
			r.Post("/", h.HandleAddHolding)
			r.Put("/{symbol}", h.HandleUpdateHolding)
			r.Delete("/{symbol}", h.HandleRemoveHolding)
		})

		r.Post("/prices/refresh", h.HandleRefreshPrices)

		r.Route("/passive", func(r chi.Router) {
			r.Get("/", h.HandleGetPassive)
			r.Put("/", h.HandleUpdatePassive)
			r.Post("/migrate", h.HandleMigratePassive) // Re-validate stored or posted block
		})
	})
}

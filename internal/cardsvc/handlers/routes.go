package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Get("/health", h.HealthHandler)
		r.Get("/card/{cardId}", h.GetCardHandler)
		r.Get("/card-file/{cardId}/{kind}", h.CardFileHandler)
		r.Post("/mint-card", h.MintCardHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/print-card", h.PrintCardHandler)
				r.Get("/cards", h.ListCardsHandler)
				r.Patch("/cards", h.PatchCardHandler)
				r.Post("/message", h.MessageHandler)
			})
		})
	})

	// direct artifact access for printing, same paths the record urls use
	fileServer := http.StripPrefix("/generated/", http.FileServer(http.Dir(h.outputDir)))
	r.Get("/generated/*", fileServer.ServeHTTP)
}

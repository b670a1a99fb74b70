package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// RegisterMouvementRoutes wires the movement mutation and read endpoints.
func RegisterMouvementRoutes(router fiber.Router, h *ledger.Handler) {
	router.Post("/marches/:marcheId/accomptes", h.CreateAccompte)
	router.Post("/marches/:marcheId/decaissements", h.CreateDecaissement)
	router.Get("/marches/:marcheId/mouvements", h.ListMarcheMovements)
	router.Get("/marches/:marcheId/solde", h.MarcheBalance)

	router.Post("/activites/:activiteId/mouvements", h.CreateMouvement)
	router.Get("/activites/:activiteId/mouvements", h.ListActiviteMovements)
	router.Get("/activites/:activiteId/solde", h.ActiviteBalance)

	router.Put("/mouvements/:movementId", h.Update)
	router.Delete("/mouvements/:movementId", h.Delete)
	router.Patch("/mouvements/:movementId/statut", h.SetStatut)
}

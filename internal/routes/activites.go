package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/activite"
)

// RegisterActiviteRoutes wires activité CRUD endpoints.
func RegisterActiviteRoutes(router fiber.Router, h *activite.Handler) {
	group := router.Group("/activites")
	group.Post("/", h.Create)
	group.Get("/", h.List)
	group.Get("/:activiteId", h.Get)
	group.Patch("/:activiteId/statut", h.UpdateStatus)
}

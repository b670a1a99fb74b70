package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/marche"
)

// RegisterMarcheRoutes wires marché CRUD endpoints.
func RegisterMarcheRoutes(router fiber.Router, h *marche.Handler) {
	group := router.Group("/marches")
	group.Post("/", h.Create)
	group.Get("/", h.List)
	group.Get("/:marcheId", h.Get)
	group.Patch("/:marcheId/statut", h.UpdateStatus)
}

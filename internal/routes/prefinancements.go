package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/prefinancement"
)

// RegisterPrefinancementRoutes wires the credit facility endpoints.
func RegisterPrefinancementRoutes(router fiber.Router, h *prefinancement.Handler) {
	router.Get("/prefinancements", h.List)
	router.Post("/marches/:marcheId/prefinancement", h.Create)
	router.Get("/marches/:marcheId/prefinancement", h.GetByMarche)
	router.Patch("/marches/:marcheId/prefinancement", h.SetActive)
}

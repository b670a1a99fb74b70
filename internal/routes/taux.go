package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/currency"
)

// RegisterTauxRoutes wires the exchange-rate administration endpoints.
func RegisterTauxRoutes(router fiber.Router, h *currency.Handler) {
	group := router.Group("/taux")
	group.Get("/", h.List)
	group.Get("/:code", h.Latest)
	group.Put("/:code", h.Upsert)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gilandre/emeraude-treasury/internal/tresorerie"
)

// RegisterTresorerieRoutes wires the dashboard projection endpoints.
func RegisterTresorerieRoutes(router fiber.Router, h *tresorerie.Handler) {
	group := router.Group("/tresorerie")
	group.Get("/attention", h.AttentionList)
	group.Get("/marches/:marcheId/courbe", h.MarcheDailyCurve)
	group.Get("/marches/:marcheId/mensuel", h.MarcheMonthlyBreakdown)
	group.Get("/marches/:marcheId/prevision", h.MarcheForecast)
	group.Get("/activites/:activiteId/courbe", h.ActiviteDailyCurve)
	group.Get("/activites/:activiteId/mensuel", h.ActiviteMonthlyBreakdown)
}

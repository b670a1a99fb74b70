package tresorerie

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Handler exposes the treasury dashboard endpoints.
type Handler struct {
	projector *Projector
}

// NewHandler constructs a treasury handler.
func NewHandler(projector *Projector) *Handler {
	return &Handler{projector: projector}
}

// MarcheDailyCurve serves the marché's cumulative daily curve.
func (h *Handler) MarcheDailyCurve(c *fiber.Ctx) error {
	return h.dailyCurve(c, ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: c.Params("marcheId")})
}

// ActiviteDailyCurve serves the activité's cumulative daily curve.
func (h *Handler) ActiviteDailyCurve(c *fiber.Ctx) error {
	return h.dailyCurve(c, ledger.OwnerRef{Kind: ledger.OwnerActivite, ID: c.Params("activiteId")})
}

func (h *Handler) dailyCurve(c *fiber.Ctx, owner ledger.OwnerRef) error {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid from date")
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid to date")
	}

	points, err := h.projector.DailyCurve(c.UserContext(), owner, from, to)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"courbe": points})
}

// MarcheMonthlyBreakdown serves the marché's monthly breakdown for one year.
func (h *Handler) MarcheMonthlyBreakdown(c *fiber.Ctx) error {
	return h.monthly(c, ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: c.Params("marcheId")})
}

// ActiviteMonthlyBreakdown serves the activité's monthly breakdown.
func (h *Handler) ActiviteMonthlyBreakdown(c *fiber.Ctx) error {
	return h.monthly(c, ledger.OwnerRef{Kind: ledger.OwnerActivite, ID: c.Params("activiteId")})
}

func (h *Handler) monthly(c *fiber.Ctx, owner ledger.OwnerRef) error {
	year := time.Now().UTC().Year()
	if raw := c.Query("annee"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid annee")
		}
		year = parsed
	}

	points, err := h.projector.MonthlyBreakdown(c.UserContext(), owner, year)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"annee": year, "mois": points})
}

// AttentionList serves the marchés needing attention, with optional threshold
// overrides.
func (h *Handler) AttentionList(c *fiber.Ctx) error {
	th := DefaultThresholds()
	if raw := c.Query("seuil_solde"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid seuil_solde")
		}
		th.BalanceRatio = parsed
	}
	if raw := c.Query("seuil_utilisation"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid seuil_utilisation")
		}
		th.UtilizationPct = parsed
	}

	items, err := h.projector.AttentionList(c.UserContext(), th)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []AttentionItem{}
	}
	return c.JSON(fiber.Map{"marches": items})
}

// MarcheForecast serves the marché's 30-day linear forecast.
func (h *Handler) MarcheForecast(c *fiber.Ctx) error {
	owner := ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: c.Params("marcheId")}
	points, err := h.projector.Forecast(c.UserContext(), owner, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"prevision": points})
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func mapError(err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}

package activite

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Handler exposes activité endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an activité handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Code   string          `json:"code"`
	Label  string          `json:"libelle"`
	Devise string          `json:"devise"`
	Budget decimal.Decimal `json:"budget"`
}

// Create opens a new activité.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	a, err := h.service.Create(c.UserContext(), CreateInput{
		Code:     req.Code,
		Label:    req.Label,
		Currency: req.Devise,
		Budget:   req.Budget,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toJSON(a))
}

// Get returns one activité with its current totals.
func (h *Handler) Get(c *fiber.Ctx) error {
	a, err := h.service.Get(c.UserContext(), c.Params("activiteId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toJSON(a))
}

// List returns all activités.
func (h *Handler) List(c *fiber.Ctx) error {
	activites, err := h.service.List(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(activites))
	for _, a := range activites {
		out = append(out, toJSON(a))
	}
	return c.JSON(fiber.Map{"activites": out})
}

type statusRequest struct {
	Statut string `json:"statut"`
}

// UpdateStatus archives or reactivates the activité.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.UpdateStatus(c.UserContext(), c.Params("activiteId"), req.Statut); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func toJSON(a Activite) fiber.Map {
	return fiber.Map{
		"id":            a.ID,
		"code":          a.Code,
		"libelle":       a.Label,
		"devise":        a.Currency,
		"budget":        a.Budget,
		"budget_xof":    a.BudgetXOF,
		"taux_creation": a.CreationRate,
		"cash_in":       a.CashIn,
		"cash_out":      a.CashOut,
		"solde":         a.Solde,
		"cash_in_xof":   a.CashInXOF,
		"cash_out_xof":  a.CashOutXOF,
		"solde_xof":     a.SoldeXOF,
		"statut":        a.Status,
		"created_at":    a.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, currency.ErrRateNotFound):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, currency.ErrRateUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

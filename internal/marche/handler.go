package marche

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Handler exposes marché endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a marché handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Code   string          `json:"code"`
	Label  string          `json:"libelle"`
	Devise string          `json:"devise"`
	Budget decimal.Decimal `json:"budget"`
}

// Create opens a new marché.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	m, err := h.service.Create(c.UserContext(), CreateInput{
		Code:     req.Code,
		Label:    req.Label,
		Currency: req.Devise,
		Budget:   req.Budget,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toJSON(m))
}

// Get returns one marché with its current totals.
func (h *Handler) Get(c *fiber.Ctx) error {
	m, err := h.service.Get(c.UserContext(), c.Params("marcheId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toJSON(m))
}

// List returns all marchés.
func (h *Handler) List(c *fiber.Ctx) error {
	marches, err := h.service.List(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(marches))
	for _, m := range marches {
		out = append(out, toJSON(m))
	}
	return c.JSON(fiber.Map{"marches": out})
}

type statusRequest struct {
	Statut string `json:"statut"`
}

// UpdateStatus transitions the marché lifecycle status.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.UpdateStatus(c.UserContext(), c.Params("marcheId"), req.Statut); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func toJSON(m Marche) fiber.Map {
	return fiber.Map{
		"id":            m.ID,
		"code":          m.Code,
		"libelle":       m.Label,
		"devise":        m.Currency,
		"budget":        m.Budget,
		"budget_xof":    m.BudgetXOF,
		"taux_creation": m.CreationRate,
		"cash_in":       m.CashIn,
		"cash_out":      m.CashOut,
		"solde":         m.Solde,
		"cash_in_xof":   m.CashInXOF,
		"cash_out_xof":  m.CashOutXOF,
		"solde_xof":     m.SoldeXOF,
		"statut":        m.Status,
		"created_at":    m.CreatedAt,
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

package prefinancement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Handler exposes préfinancement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a préfinancement handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Authorized decimal.Decimal `json:"montant_autorise"`
}

// Create opens a facility on the marché in the path.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Create(c.UserContext(), c.Params("marcheId"), req.Authorized)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toJSON(p))
}

// GetByMarche returns the facility attached to the marché in the path.
func (h *Handler) GetByMarche(c *fiber.Ctx) error {
	p, err := h.service.GetByMarche(c.UserContext(), c.Params("marcheId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toJSON(p))
}

// List returns every facility.
func (h *Handler) List(c *fiber.Ctx) error {
	facilities, err := h.service.List(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(facilities))
	for _, p := range facilities {
		out = append(out, toJSON(p))
	}
	return c.JSON(fiber.Map{"prefinancements": out})
}

type activeRequest struct {
	Active bool `json:"actif"`
}

// SetActive toggles whether new draws are accepted.
func (h *Handler) SetActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetActive(c.UserContext(), c.Params("marcheId"), req.Active); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func toJSON(p ledger.Prefinancement) fiber.Map {
	return fiber.Map{
		"id":                   p.ID,
		"marche_id":            p.MarcheID,
		"montant_autorise":     p.Authorized,
		"montant_utilise":      p.Utilized,
		"montant_restant":      p.Remaining,
		"montant_autorise_xof": p.AuthorizedXOF,
		"montant_utilise_xof":  p.UtilizedXOF,
		"montant_restant_xof":  p.RemainingXOF,
		"actif":                p.Active,
		"created_at":           p.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return fiber.NewError(http.StatusConflict, err.Error())
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

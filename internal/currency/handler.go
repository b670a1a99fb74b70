package currency

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes the exchange-rate administration endpoints.
type Handler struct {
	repo Repository
}

// NewHandler constructs a rate handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type upsertRequest struct {
	Rate          decimal.Decimal `json:"taux"`
	EffectiveDate string          `json:"date_effet"`
}

// Upsert records a rate for the currency code in the path, effective today
// unless a date is given.
func (h *Handler) Upsert(c *fiber.Ctx) error {
	code := strings.ToUpper(c.Params("code"))
	if code == "" || code == ReportingCurrency {
		return fiber.NewError(http.StatusBadRequest, "invalid currency code")
	}

	var req upsertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Rate.Sign() <= 0 {
		return fiber.NewError(http.StatusBadRequest, "taux must be positive")
	}

	effective := time.Now().UTC().Truncate(24 * time.Hour)
	if req.EffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid date_effet")
		}
		effective = parsed
	}

	rate := Rate{Code: code, Rate: req.Rate, EffectiveDate: effective}
	if err := h.repo.Upsert(c.UserContext(), rate); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toJSON(rate))
}

// Latest returns the most recent effective rate for one currency code.
func (h *Handler) Latest(c *fiber.Ctx) error {
	code := strings.ToUpper(c.Params("code"))
	if code == ReportingCurrency {
		return c.JSON(toJSON(Rate{Code: code, Rate: decimal.NewFromInt(1), EffectiveDate: time.Now().UTC()}))
	}

	rate, err := h.repo.Latest(c.UserContext(), code)
	if err != nil {
		if errors.Is(err, ErrRateNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toJSON(rate))
}

// List returns the latest rate per currency code.
func (h *Handler) List(c *fiber.Ctx) error {
	rates, err := h.repo.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(rates))
	for _, rate := range rates {
		out = append(out, toJSON(rate))
	}
	return c.JSON(fiber.Map{"taux": out})
}

func toJSON(rate Rate) fiber.Map {
	return fiber.Map{
		"devise":     rate.Code,
		"taux":       rate.Rate,
		"date_effet": rate.EffectiveDate.Format("2006-01-02"),
	}
}

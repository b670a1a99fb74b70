package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
)

// Handler exposes the movement endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a movement handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type movementRequest struct {
	Montant      decimal.Decimal `json:"montant"`
	Date         time.Time       `json:"date"`
	Source       string          `json:"source"`
	Sens         string          `json:"sens"`
	Statut       string          `json:"statut"`
	Reference    string          `json:"reference"`
	Description  string          `json:"description"`
	Categorie    string          `json:"categorie"`
	Beneficiaire string          `json:"beneficiaire"`
	ModePaiement string          `json:"mode_paiement"`
}

// CreateAccompte records a cash inflow on a marché.
func (h *Handler) CreateAccompte(c *fiber.Ctx) error {
	return h.create(c, OwnerRef{Kind: OwnerMarche, ID: c.Params("marcheId")}, KindAccompte)
}

// CreateDecaissement records a cash outflow on a marché.
func (h *Handler) CreateDecaissement(c *fiber.Ctx) error {
	return h.create(c, OwnerRef{Kind: OwnerMarche, ID: c.Params("marcheId")}, KindDecaissement)
}

// CreateMouvement records a bidirectional entry on an activité.
func (h *Handler) CreateMouvement(c *fiber.Ctx) error {
	return h.create(c, OwnerRef{Kind: OwnerActivite, ID: c.Params("activiteId")}, KindMouvement)
}

func (h *Handler) create(c *fiber.Ctx, owner OwnerRef, kind Kind) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.engine.CreateMovement(c.UserContext(), owner, actorID(c), MovementInput{
		Kind:         kind,
		Amount:       req.Montant,
		Date:         req.Date,
		Source:       Source(req.Source),
		Sens:         Sens(req.Sens),
		Status:       DecaissementStatus(req.Statut),
		Reference:    req.Reference,
		Description:  req.Description,
		Categorie:    req.Categorie,
		Beneficiaire: req.Beneficiaire,
		ModePaiement: req.ModePaiement,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(resultJSON(res))
}

// Update edits a committed movement of any kind. The request body is the full
// proposed state: metadata fields left out of the payload are cleared, not
// kept, so clients must resend every field they want to retain.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.engine.UpdateMovement(c.UserContext(), c.Params("movementId"), actorID(c), UpdateInput{
		Amount:       req.Montant,
		Date:         req.Date,
		Source:       Source(req.Source),
		Sens:         Sens(req.Sens),
		Reference:    req.Reference,
		Description:  req.Description,
		Categorie:    req.Categorie,
		Beneficiaire: req.Beneficiaire,
		ModePaiement: req.ModePaiement,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resultJSON(res))
}

// Delete reverses and removes a committed movement.
func (h *Handler) Delete(c *fiber.Ctx) error {
	res, err := h.engine.DeleteMovement(c.UserContext(), c.Params("movementId"), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"supprime": res.Movement.ID,
		"owner":    ownerJSON(res.Owner),
	})
}

type statutRequest struct {
	Statut string `json:"statut"`
}

// SetStatut transitions a décaissement among PREVU/VALIDE/PAYE.
func (h *Handler) SetStatut(c *fiber.Ctx) error {
	var req statutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.engine.SetDecaissementStatus(c.UserContext(), c.Params("movementId"), actorID(c), DecaissementStatus(req.Statut))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resultJSON(res))
}

// MarcheBalance returns the marché's available balance breakdown.
func (h *Handler) MarcheBalance(c *fiber.Ctx) error {
	return h.balance(c, OwnerRef{Kind: OwnerMarche, ID: c.Params("marcheId")})
}

// ActiviteBalance returns the activité's available balance breakdown.
func (h *Handler) ActiviteBalance(c *fiber.Ctx) error {
	return h.balance(c, OwnerRef{Kind: OwnerActivite, ID: c.Params("activiteId")})
}

func (h *Handler) balance(c *fiber.Ctx, owner OwnerRef) error {
	bal, err := h.engine.AvailableBalance(c.UserContext(), owner, c.Query("exclude"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"encaissements":  bal.CashIn,
		"decaissements":  bal.CashOut,
		"prefinancement": bal.Headroom,
		"disponible":     bal.Available,
	})
}

// ListMarcheMovements returns a marché's movements, optionally date-bounded.
func (h *Handler) ListMarcheMovements(c *fiber.Ctx) error {
	return h.list(c, OwnerRef{Kind: OwnerMarche, ID: c.Params("marcheId")})
}

// ListActiviteMovements returns an activité's movements, optionally date-bounded.
func (h *Handler) ListActiviteMovements(c *fiber.Ctx) error {
	return h.list(c, OwnerRef{Kind: OwnerActivite, ID: c.Params("activiteId")})
}

func (h *Handler) list(c *fiber.Ctx, owner OwnerRef) error {
	from, err := parseDateQuery(c.Query("from"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid from date")
	}
	to, err := parseDateQuery(c.Query("to"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid to date")
	}

	movements, err := h.engine.Movements(c.UserContext(), owner, from, to)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]fiber.Map, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementJSON(m))
	}
	return c.JSON(fiber.Map{"mouvements": out})
}

func parseDateQuery(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func actorID(c *fiber.Ctx) string {
	return c.Get("X-Actor-ID")
}

func movementJSON(m Movement) fiber.Map {
	out := fiber.Map{
		"id":          m.ID,
		"type":        string(m.Kind),
		"montant":     m.Amount,
		"montant_xof": m.AmountXOF,
		"taux":        m.Rate,
		"date":        m.Date,
	}
	if m.Kind == KindDecaissement {
		out["source"] = string(m.Source)
		out["statut"] = string(m.Status)
	}
	if m.Kind == KindMouvement {
		out["sens"] = string(m.Sens)
	}
	if m.Reference != "" {
		out["reference"] = m.Reference
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	if m.Categorie != "" {
		out["categorie"] = m.Categorie
	}
	if m.Beneficiaire != "" {
		out["beneficiaire"] = m.Beneficiaire
	}
	if m.ModePaiement != "" {
		out["mode_paiement"] = m.ModePaiement
	}
	return out
}

func ownerJSON(o Owner) fiber.Map {
	return fiber.Map{
		"id":           o.Ref.ID,
		"code":         o.Code,
		"devise":       o.Currency,
		"cash_in":      o.CashIn,
		"cash_out":     o.CashOut,
		"solde":        o.Solde,
		"cash_in_xof":  o.CashInXOF,
		"cash_out_xof": o.CashOutXOF,
		"solde_xof":    o.SoldeXOF,
	}
}

func resultJSON(res Result) fiber.Map {
	return fiber.Map{
		"mouvement": movementJSON(res.Movement),
		"owner":     ownerJSON(res.Owner),
	}
}

// respondError maps the ledger error taxonomy to HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var insufficient *InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":      "fonds_insuffisants",
			"demande":    insufficient.Requested,
			"disponible": insufficient.Available,
			"manque":     insufficient.Shortfall(),
		})
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, currency.ErrRateNotFound):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, currency.ErrRateUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error": "conflit_concurrent",
			"retry": true,
		})
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

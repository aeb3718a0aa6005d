// AngelaMos | 2026
// handler.go

package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/middleware"
)

type Handler struct {
	service   *Service
	qr        *QRCodeRenderer
	validator *validator.Validate
}

func NewHandler(service *Service, qr *QRCodeRenderer) *Handler {
	return &Handler{
		service:   service,
		qr:        qr,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes registers the card endpoints a signed-in client uses.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/cards", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListMyCards)
		r.Get("/{cardID}", h.GetCard)
		r.Get("/{cardID}/qrcode", h.GetCardQRCode)
	})
}

// RegisterAdminRoutes registers the counter-side endpoints.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/cards", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.IssueCard)
		r.Get("/", h.ListCards)
		r.Get("/stats", h.GetStatistics)
		r.Post("/scan", h.ScanCard)
		r.Post("/{cardID}/recharge", h.Recharge)
		r.Post("/{cardID}/debit", h.Debit)
	})
}

func (h *Handler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	cards, err := h.service.CardsForOwner(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	limit := parseIntQuery(r, "history_limit", h.service.HistoryPreview())
	core.OK(w, CardListResponse{Cards: ToCardResponseList(cards, limit)})
}

// GetCard returns one card with its full history. Clients only see their
// own cards.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, ok := h.cardForRequest(w, r)
	if !ok {
		return
	}

	core.OK(w, ToCardResponse(card, parseIntQuery(r, "history_limit", 0)))
}

func (h *Handler) GetCardQRCode(w http.ResponseWriter, r *http.Request) {
	card, ok := h.cardForRequest(w, r)
	if !ok {
		return
	}

	png, err := h.qr.PNG(card)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck
}

func (h *Handler) IssueCard(w http.ResponseWriter, r *http.Request) {
	var req IssueCardRequest
	if !h.decode(w, r, &req) {
		return
	}

	card, err := h.service.IssueCard(r.Context(), IssueParams{
		OwnerEmail:  req.OwnerEmail,
		Amount:      req.Amount.Decimal,
		Description: req.Description,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.Created(w, ToCardResponse(card, 0))
}

// ListCards lists every card, or only those whose code contains ?code=.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	var (
		cards []Card
		err   error
	)

	if _, searching := r.URL.Query()["code"]; searching {
		cards, err = h.service.FindByCode(r.Context(), r.URL.Query().Get("code"))
	} else {
		cards, err = h.service.ListCards(r.Context())
	}
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	limit := parseIntQuery(r, "history_limit", h.service.HistoryPreview())
	core.OK(w, CardListResponse{Cards: ToCardResponseList(cards, limit)})
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ComputeStatistics(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToStatisticsResponse(stats))
}

// ScanCard resolves the payload read from a card's QR code.
func (h *Handler) ScanCard(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}

	code, err := ParsePayload(req.Payload)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	card, err := h.service.CardByCode(r.Context(), code)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, ToCardResponse(card, 0))
}

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if !h.decode(w, r, &req) {
		return
	}

	card, err := h.service.Recharge(
		r.Context(),
		chi.URLParam(r, "cardID"),
		req.Amount.Decimal,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, ToCardResponse(card, 0))
}

func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	var req DebitRequest
	if !h.decode(w, r, &req) {
		return
	}

	card, err := h.service.Debit(
		r.Context(),
		chi.URLParam(r, "cardID"),
		req.Amount.Decimal,
		req.Description,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	core.OK(w, ToCardResponse(card, 0))
}

func (h *Handler) cardForRequest(
	w http.ResponseWriter,
	r *http.Request,
) (*Card, bool) {
	card, err := h.service.GetCard(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		writeLedgerError(w, err)
		return nil, false
	}

	if !middleware.CanAccessOwner(r.Context(), card.OwnerID) {
		core.Forbidden(w, "card belongs to another user")
		return nil, false
	}

	return card, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			writeLedgerError(w, err)
			return false
		}
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		core.JSONError(w, core.NewAppError(
			err, "amount must be a positive number",
			http.StatusBadRequest, "INVALID_AMOUNT",
		))
	case errors.Is(err, ErrInsufficientBalance):
		core.JSONError(w, core.UnprocessableError(
			err, "insufficient balance", "INSUFFICIENT_BALANCE",
		))
	case errors.Is(err, ErrUserNotFound):
		core.JSONError(w, core.NewAppError(
			err, "no user with that email",
			http.StatusNotFound, "USER_NOT_FOUND",
		))
	case errors.Is(err, ErrCardNotFound):
		core.NotFound(w, "card")
	case errors.Is(err, core.ErrConflict):
		core.JSONError(w, core.ConflictError(
			"card was modified by another request, retry",
		))
	case errors.Is(err, ErrCodeExhausted):
		core.JSONError(w, core.NewAppError(
			err, "could not generate a card code, retry",
			http.StatusServiceUnavailable, "CODE_EXHAUSTED",
		))
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

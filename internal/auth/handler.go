// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. limiter wraps the credential endpoints,
// which get a tighter budget than the rest of the API.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.Post("/refresh", h.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
		})
	})
}

// origin is where a session was opened from, recorded on its refresh
// tokens.
type origin struct {
	userAgent string
	ip        string
}

func originOf(r *http.Request) origin {
	return origin{userAgent: r.UserAgent(), ip: middleware.ClientIP(r)}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	from := originOf(r)
	resp, err := h.service.Login(r.Context(), req, from.userAgent, from.ip)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

// Register opens a client account and signs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	from := originOf(r)
	resp, err := h.service.Register(r.Context(), req, from.userAgent, from.ip)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	from := originOf(r)
	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, from.userAgent, from.ip)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

// Logout accepts an empty body; the refresh token is optional.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	var req LogoutRequest
	if r.ContentLength != 0 && !h.bind(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, claims); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

var authErrors = []struct {
	target error
	render func() *core.AppError
}{
	{ErrInvalidCredentials, func() *core.AppError {
		return core.UnauthorizedError("invalid email or password")
	}},
	{ErrEmailExists, func() *core.AppError { return core.DuplicateError("email") }},
	{ErrTokenReuse, func() *core.AppError {
		return core.NewAppError(
			core.ErrTokenRevoked,
			"security alert: token reuse detected, all sessions revoked",
			http.StatusUnauthorized,
			"TOKEN_REUSE_DETECTED",
		)
	}},
	{core.ErrTokenExpired, core.TokenExpiredError},
	{core.ErrTokenRevoked, core.TokenRevokedError},
	{core.ErrTokenInvalid, core.TokenInvalidError},
	{core.ErrForbidden, func() *core.AppError {
		return core.ForbiddenError("cannot revoke another user's token")
	}},
	{core.ErrNotFound, func() *core.AppError { return core.NotFoundError("user") }},
}

// writeAuthError renders the first entry of authErrors that err matches.
func writeAuthError(w http.ResponseWriter, err error) {
	for _, e := range authErrors {
		if errors.Is(err, e.target) {
			core.JSONError(w, e.render())
			return
		}
	}
	core.InternalServerError(w, err)
}

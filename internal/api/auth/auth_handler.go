package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vozurbana/voz-urbana-api/internal/api"
)

// Handler is the HTTP surface of the identity lifecycle service. All error
// mapping goes through the shared taxonomy; handlers never invent status
// codes of their own.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// bearerToken pulls the raw token out of the Authorization header. The gate
// has already validated it for protected routes; handlers that need the
// token itself (password change, status transition) re-read it here.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Login == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "login and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email is required")
		return
	}

	pair, err := h.service.LoginWithGoogle(r.Context(), req.Email)
	if err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, RoleUser)
}

// RegisterAdmin is mounted behind RequireRole(RoleAdmin); the underlying
// operation is the same as Register apart from the role.
func (h *Handler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, RoleAdmin)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, role Role) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Login == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "login and password are required")
		return
	}

	if err := h.service.Register(r.Context(), req.Login, req.Password, role); err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, Response{
		Success: true,
		Message: "registered",
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.service.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "current and new password are required")
		return
	}

	if err := h.service.ChangePassword(r.Context(), bearerToken(r), req.CurrentPassword, req.NewPassword); err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, Response{
		Success: true,
		Message: "password changed",
	})
}

func (h *Handler) CompleteAuthentication(w http.ResponseWriter, r *http.Request) {
	pair, err := h.service.CompleteAuthentication(r.Context(), bearerToken(r))
	if err != nil {
		api.ErrorResponseFor(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

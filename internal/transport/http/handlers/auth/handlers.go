package authhandler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"worklog/internal/domain/auth"
	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/middleware"
	"worklog/internal/transport/http/shared"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, auth.User, error)
}

type Handler struct {
	Service Authenticator
	Audit   shared.Auditor
}

func NewHandler(service Authenticator, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Audit: auditor}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)

	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}

	token, user, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	}
	if err != nil {
		middleware.LogError(r, "login failed", err)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to log in", requestID)
		return
	}

	shared.RecordAudit(r, h.Audit, user.ID, "auth.login", "user", user.ID, nil, nil)
	api.Success(w, map[string]any{
		"token": token,
		"user":  userResponse{ID: user.ID, Email: user.Email, Role: user.Role},
	}, requestID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, userResponse{ID: user.UserID, Email: user.Email, Role: user.RoleName}, middleware.GetRequestID(r.Context()))
}

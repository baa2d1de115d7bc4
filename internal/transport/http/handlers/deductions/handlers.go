package deductionhandler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/auth"
	"worklog/internal/domain/deduction"
	"worklog/internal/platform/money"
	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/middleware"
	"worklog/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, filter deduction.ListFilter) ([]deduction.Deduction, error)
	Get(ctx context.Context, id int64) (deduction.WithApplications, error)
	Pending(ctx context.Context, driverID int64, weekEnding time.Time) ([]deduction.Pending, error)
	Create(ctx context.Context, in deduction.CreateInput) (deduction.Deduction, error)
	Update(ctx context.Context, id int64, in deduction.UpdateInput) (before, after deduction.Deduction, err error)
	Delete(ctx context.Context, id int64) (cancelled bool, err error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

type createPayload struct {
	DriverID       int64            `json:"driverId" validate:"gt=0"`
	Type           string           `json:"type" validate:"required,oneof=deduction reimbursement"`
	Description    string           `json:"description" validate:"required,max=255"`
	TotalAmount    decimal.Decimal  `json:"totalAmount"`
	Frequency      string           `json:"frequency" validate:"required,oneof=once weekly fortnightly monthly"`
	AmountPerCycle *decimal.Decimal `json:"amountPerCycle"`
	StartDate      string           `json:"startDate"`
	Notes          string           `json:"notes" validate:"max=2000"`
}

type updatePayload struct {
	Type           *string          `json:"type" validate:"omitempty,oneof=deduction reimbursement"`
	Description    *string          `json:"description" validate:"omitempty,max=255"`
	TotalAmount    *decimal.Decimal `json:"totalAmount"`
	Frequency      *string          `json:"frequency" validate:"omitempty,oneof=once weekly fortnightly monthly"`
	AmountPerCycle *decimal.Decimal `json:"amountPerCycle"`
	StartDate      *string          `json:"startDate"`
	Notes          *string          `json:"notes" validate:"omitempty,max=2000"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rcti-deductions", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/pending", h.handlePending)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/{deductionID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Patch("/{deductionID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Delete("/{deductionID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	filter := deduction.ListFilter{
		Status: strings.ToLower(strings.TrimSpace(query.Get("status"))),
		Type:   strings.ToLower(strings.TrimSpace(query.Get("type"))),
	}

	validator := shared.NewValidator()
	if raw := query.Get("driverId"); raw != "" {
		id, ok := shared.ParseID(raw)
		if !ok {
			validator.Add("driverId", "must be a positive integer")
		}
		filter.DriverID = id
	}
	validator.Enum("status", filter.Status, append(slices.Clone(deduction.Statuses), deduction.StatusAll))
	validator.Enum("type", filter.Type, deduction.Types)
	if validator.Reject(w, requestID) {
		return
	}

	items, err := h.Service.List(r.Context(), filter)
	if err != nil {
		middleware.LogError(r, "list deductions failed", err)
		api.Fail(w, http.StatusInternalServerError, "deduction_list_failed", "failed to list deductions", requestID)
		return
	}
	if items == nil {
		items = []deduction.Deduction{}
	}
	api.Success(w, items, requestID)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	validator := shared.NewValidator()
	driverID, ok := shared.ParseID(query.Get("driverId"))
	if !ok {
		validator.Add("driverId", "must be a positive integer")
	}
	weekEnding := time.Now().UTC()
	if raw := query.Get("weekEnding"); raw != "" {
		weekEnding, _ = validator.Date("weekEnding", raw)
	}
	if validator.Reject(w, requestID) {
		return
	}

	pending, err := h.Service.Pending(r.Context(), driverID, weekEnding)
	if err != nil {
		middleware.LogError(r, "pending deductions failed", err)
		api.Fail(w, http.StatusInternalServerError, "deduction_pending_failed", "failed to load pending deductions", requestID)
		return
	}
	if pending == nil {
		pending = []deduction.Pending{}
	}
	api.Success(w, pending, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, ok := shared.ParseID(chi.URLParam(r, "deductionID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "deduction not found", requestID)
		return
	}

	item, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "deduction_get_failed", "failed to load deduction")
		return
	}
	api.Success(w, item, requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload createPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	payload.Type = strings.ToLower(strings.TrimSpace(payload.Type))
	payload.Frequency = strings.ToLower(strings.TrimSpace(payload.Frequency))
	payload.Description = strings.TrimSpace(payload.Description)

	validator := shared.NewValidator()
	validator.Struct(payload)
	validator.Positive("totalAmount", &payload.TotalAmount, money.MaxAmount)
	validator.Positive("amountPerCycle", payload.AmountPerCycle, money.MaxAmount)
	var startDate time.Time
	if strings.TrimSpace(payload.StartDate) != "" {
		startDate, _ = validator.Date("startDate", payload.StartDate)
	}
	if validator.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), deduction.CreateInput{
		DriverID:       payload.DriverID,
		Type:           payload.Type,
		Description:    payload.Description,
		TotalAmount:    payload.TotalAmount,
		Frequency:      payload.Frequency,
		AmountPerCycle: payload.AmountPerCycle,
		StartDate:      startDate,
		Notes:          payload.Notes,
	})
	if err != nil {
		h.fail(w, r, err, "deduction_create_failed", "failed to create deduction")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "deduction.create", "rcti_deduction", strconv.FormatInt(created.ID, 10), nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := shared.ParseID(chi.URLParam(r, "deductionID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "deduction not found", requestID)
		return
	}

	var payload updatePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	if payload.Type != nil {
		normalized := strings.ToLower(strings.TrimSpace(*payload.Type))
		payload.Type = &normalized
	}
	if payload.Frequency != nil {
		normalized := strings.ToLower(strings.TrimSpace(*payload.Frequency))
		payload.Frequency = &normalized
	}

	validator := shared.NewValidator()
	validator.Struct(payload)
	validator.Positive("totalAmount", payload.TotalAmount, money.MaxAmount)
	validator.Positive("amountPerCycle", payload.AmountPerCycle, money.MaxAmount)
	in := deduction.UpdateInput{
		Type:           payload.Type,
		Description:    payload.Description,
		TotalAmount:    payload.TotalAmount,
		Frequency:      payload.Frequency,
		AmountPerCycle: payload.AmountPerCycle,
		Notes:          payload.Notes,
	}
	if payload.StartDate != nil {
		if startDate, ok := validator.Date("startDate", *payload.StartDate); ok {
			in.StartDate = &startDate
		}
	}
	if validator.Reject(w, requestID) {
		return
	}

	before, after, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err, "deduction_update_failed", "failed to update deduction")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "deduction.update", "rcti_deduction", strconv.FormatInt(id, 10), before, after)
	api.Success(w, after, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := shared.ParseID(chi.URLParam(r, "deductionID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "deduction not found", requestID)
		return
	}

	cancelled, err := h.Service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "deduction_delete_failed", "failed to delete deduction")
		return
	}

	action := "deduction.delete"
	if cancelled {
		action = "deduction.cancel"
	}
	shared.RecordAudit(r, h.Audit, user.UserID, action, "rcti_deduction", strconv.FormatInt(id, 10), nil, nil)
	api.Success(w, map[string]any{"id": id, "deleted": !cancelled, "cancelled": cancelled}, requestID)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, deduction.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "deduction not found", requestID)
	case errors.Is(err, deduction.ErrDriverNotFound):
		api.Fail(w, http.StatusNotFound, "driver_not_found", "driver not found", requestID)
	case errors.Is(err, deduction.ErrEmployeeDriver):
		api.Fail(w, http.StatusBadRequest, "employee_driver", "deductions cannot be created for employee drivers", requestID)
	case errors.Is(err, deduction.ErrHasApplications):
		api.Fail(w, http.StatusBadRequest, "deduction_locked", "type, amounts and frequency cannot change once the deduction has been applied", requestID)
	case errors.Is(err, deduction.ErrInvalidAmount):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "amountPerCycle", Reason: "amounts must be greater than 0"}})
	default:
		middleware.LogError(r, message, err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

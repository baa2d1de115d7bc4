package driverhandler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/auth"
	"worklog/internal/domain/driver"
	"worklog/internal/platform/money"
	"worklog/internal/platform/querier"
	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/middleware"
	"worklog/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, driverType string, limit, offset int) ([]driver.Driver, error)
	Get(ctx context.Context, q querier.Querier, id int64) (driver.Driver, error)
	Create(ctx context.Context, d driver.Driver) (driver.Driver, error)
	Update(ctx context.Context, id int64, patch driver.Patch) (driver.Driver, driver.Driver, error)
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
	Name        string                     `json:"name" validate:"required,max=200"`
	Type        string                     `json:"type" validate:"required,oneof=Employee Contractor Subcontractor"`
	Breaks      decimal.Decimal            `json:"breaks"`
	GSTStatus   string                     `json:"gstStatus" validate:"omitempty,oneof=registered not_registered"`
	GSTMode     string                     `json:"gstMode" validate:"omitempty,oneof=exclusive inclusive"`
	TruckRates  map[string]decimal.Decimal `json:"truckRates"`
	ABN         string                     `json:"abn" validate:"max=20"`
	BankAccount string                     `json:"bankAccount" validate:"max=64"`
}

type updatePayload struct {
	Name        *string                    `json:"name" validate:"omitempty,min=1,max=200"`
	Type        *string                    `json:"type" validate:"omitempty,oneof=Employee Contractor Subcontractor"`
	Breaks      *decimal.Decimal           `json:"breaks"`
	GSTStatus   *string                    `json:"gstStatus" validate:"omitempty,oneof=registered not_registered"`
	GSTMode     *string                    `json:"gstMode" validate:"omitempty,oneof=exclusive inclusive"`
	TruckRates  map[string]decimal.Decimal `json:"truckRates"`
	ABN         *string                    `json:"abn" validate:"omitempty,max=20"`
	BankAccount *string                    `json:"bankAccount" validate:"omitempty,max=64"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/drivers", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/{driverID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Patch("/{driverID}", h.handleUpdate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	driverType := strings.TrimSpace(r.URL.Query().Get("type"))

	validator := shared.NewValidator()
	validator.Enum("type", driverType, driver.Types)
	if validator.Reject(w, requestID) {
		return
	}
	for _, candidate := range driver.Types {
		if strings.EqualFold(candidate, driverType) {
			driverType = candidate
		}
	}

	items, err := h.Service.List(r.Context(), driverType, page.Limit, page.Offset)
	if err != nil {
		middleware.LogError(r, "list drivers failed", err)
		api.Fail(w, http.StatusInternalServerError, "driver_list_failed", "failed to list drivers", requestID)
		return
	}
	if items == nil {
		items = []driver.Driver{}
	}
	canSeeBank := h.canSeeBank(r)
	for i := range items {
		driver.Redact(&items[i], canSeeBank)
	}
	api.Success(w, items, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, ok := shared.ParseID(chi.URLParam(r, "driverID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "driver not found", requestID)
		return
	}
	item, err := h.Service.Get(r.Context(), nil, id)
	if err != nil {
		h.fail(w, r, err, "driver_get_failed", "failed to load driver")
		return
	}
	driver.Redact(&item, h.canSeeBank(r))
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
	validator := shared.NewValidator()
	validator.Struct(payload)
	checkAmounts(validator, &payload.Breaks, payload.TruckRates)
	if validator.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), driver.Driver{
		Name:        payload.Name,
		Type:        payload.Type,
		Breaks:      payload.Breaks,
		GSTStatus:   payload.GSTStatus,
		GSTMode:     payload.GSTMode,
		TruckRates:  payload.TruckRates,
		ABN:         payload.ABN,
		BankAccount: payload.BankAccount,
	})
	if err != nil {
		h.fail(w, r, err, "driver_create_failed", "failed to create driver")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "driver.create", "driver", strconv.FormatInt(created.ID, 10), nil, masked(created))
	api.Created(w, created, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := shared.ParseID(chi.URLParam(r, "driverID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "driver not found", requestID)
		return
	}

	var payload updatePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	checkAmounts(validator, payload.Breaks, payload.TruckRates)
	if validator.Reject(w, requestID) {
		return
	}

	before, after, err := h.Service.Update(r.Context(), id, driver.Patch{
		Name:        payload.Name,
		Type:        payload.Type,
		Breaks:      payload.Breaks,
		GSTStatus:   payload.GSTStatus,
		GSTMode:     payload.GSTMode,
		TruckRates:  payload.TruckRates,
		ABN:         payload.ABN,
		BankAccount: payload.BankAccount,
	})
	if err != nil {
		h.fail(w, r, err, "driver_update_failed", "failed to update driver")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "driver.update", "driver", strconv.FormatInt(id, 10), masked(before), masked(after))
	api.Success(w, after, requestID)
}

func checkAmounts(validator *shared.Validator, breaks *decimal.Decimal, rates map[string]decimal.Decimal) {
	validator.NonNegative("breaks", breaks, money.MaxBreakHours)
	for truckType, rate := range rates {
		validator.Required("truckRates", truckType, "truck type must not be blank")
		validator.NonNegative("truckRates."+truckType, &rate, money.MaxAmount)
	}
}

func (h *Handler) canSeeBank(r *http.Request) bool {
	user, ok := middleware.GetUser(r.Context())
	if !ok || h.Perms == nil {
		return false
	}
	allowed, err := h.Perms.HasPermission(r.Context(), user.RoleName, auth.PermWrite)
	return err == nil && allowed
}

func masked(d driver.Driver) driver.Driver {
	driver.Redact(&d, false)
	return d
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, driver.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "driver not found", requestID)
	case errors.Is(err, driver.ErrInvalidBreaks):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "breaks", Reason: "must not be negative"}})
	case errors.Is(err, driver.ErrInvalidRate):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "truckRates", Reason: "must not be negative"}})
	default:
		middleware.LogError(r, message, err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

package jobhandler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/auth"
	"worklog/internal/domain/job"
	"worklog/internal/platform/money"
	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/middleware"
	"worklog/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, filter job.Filter, limit, offset int) ([]job.Job, error)
	Create(ctx context.Context, j job.Job) (job.Job, error)
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
	Date         string           `json:"date" validate:"required"`
	DriverID     int64            `json:"driverId" validate:"gt=0"`
	Customer     string           `json:"customer" validate:"required,max=255"`
	TruckType    string           `json:"truckType" validate:"required,max=100"`
	Description  string           `json:"description" validate:"max=500"`
	ChargedHours decimal.Decimal  `json:"chargedHours"`
	RatePerHour  *decimal.Decimal `json:"ratePerHour"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Post("/", h.handleCreate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	page := shared.ParsePagination(r, 100, 500)

	var filter job.Filter
	validator := shared.NewValidator()
	if raw := query.Get("driverId"); raw != "" {
		id, ok := shared.ParseID(raw)
		if !ok {
			validator.Add("driverId", "must be a positive integer")
		}
		filter.DriverID = id
	}
	if raw := query.Get("from"); raw != "" {
		filter.From, _ = validator.Date("from", raw)
	}
	if raw := query.Get("to"); raw != "" {
		filter.To, _ = validator.Date("to", raw)
	}
	validator.DateOrder("from", filter.From, "to", filter.To)
	if validator.Reject(w, requestID) {
		return
	}

	items, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		middleware.LogError(r, "list jobs failed", err)
		api.Fail(w, http.StatusInternalServerError, "job_list_failed", "failed to list jobs", requestID)
		return
	}
	if items == nil {
		items = []job.Job{}
	}
	api.Success(w, items, requestID)
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
	var date time.Time
	if payload.Date != "" {
		date, _ = validator.Date("date", payload.Date)
	}
	validator.NonNegative("chargedHours", &payload.ChargedHours, money.MaxHours)
	validator.NonNegative("ratePerHour", payload.RatePerHour, money.MaxAmount)
	if validator.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), job.Job{
		Date:         date,
		DriverID:     payload.DriverID,
		Customer:     payload.Customer,
		TruckType:    payload.TruckType,
		Description:  payload.Description,
		ChargedHours: payload.ChargedHours,
		RatePerHour:  payload.RatePerHour,
	})
	if err != nil {
		switch {
		case errors.Is(err, job.ErrDriverNotFound):
			api.Fail(w, http.StatusNotFound, "driver_not_found", "driver not found", requestID)
		case errors.Is(err, job.ErrInvalidHours):
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "chargedHours", Reason: "must not be negative"}})
		default:
			middleware.LogError(r, "create job failed", err)
			api.Fail(w, http.StatusInternalServerError, "job_create_failed", "failed to create job", requestID)
		}
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "job.create", "job", strconv.FormatInt(created.ID, 10), nil, created)
	api.Created(w, created, requestID)
}

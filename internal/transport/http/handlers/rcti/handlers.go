package rctihandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/auth"
	"worklog/internal/domain/deduction"
	"worklog/internal/domain/rcti"
	"worklog/internal/platform/metrics"
	"worklog/internal/platform/money"
	"worklog/internal/transport/http/api"
	"worklog/internal/transport/http/middleware"
	"worklog/internal/transport/http/shared"
)

const finalizeEndpoint = "rcti.finalize"

type Service interface {
	List(ctx context.Context, filter rcti.Filter, limit, offset int) ([]rcti.Rcti, error)
	Detail(ctx context.Context, id int64) (rcti.Detail, error)
	CreateDraft(ctx context.Context, driverID int64, weekEnding time.Time) (rcti.Rcti, error)
	AddLine(ctx context.Context, id int64, in rcti.LineInput) (rcti.Line, rcti.Totals, error)
	DeleteLine(ctx context.Context, id, lineID int64) (rcti.Line, rcti.Totals, error)
	Finalize(ctx context.Context, id int64, overrides deduction.Overrides) (rcti.FinalizeResult, error)
	MarkPaid(ctx context.Context, id int64) (rcti.Rcti, error)
}

// Idempotency is satisfied by *middleware.IdempotencyStore.
type Idempotency interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type Handler struct {
	Service     Service
	Perms       middleware.PermissionStore
	Audit       shared.Auditor
	Idempotency Idempotency
	Metrics     *metrics.Collector
	Company     rcti.Company
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.Auditor, idem Idempotency, collector *metrics.Collector, company rcti.Company) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Idempotency: idem, Metrics: collector, Company: company}
}

type createPayload struct {
	DriverID   int64  `json:"driverId" validate:"gt=0"`
	WeekEnding string `json:"weekEnding" validate:"required"`
}

type linePayload struct {
	JobDate      string          `json:"jobDate"`
	Customer     string          `json:"customer" validate:"required,max=255"`
	TruckType    string          `json:"truckType" validate:"max=100"`
	Description  string          `json:"description" validate:"max=500"`
	ChargedHours decimal.Decimal `json:"chargedHours"`
	RatePerHour  decimal.Decimal `json:"ratePerHour"`
}

type finalizePayload struct {
	DeductionOverrides map[string]json.RawMessage `json:"deductionOverrides"`
}

type lineChange struct {
	Line   rcti.Line   `json:"line"`
	Totals rcti.Totals `json:"totals"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rcti", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/{rctiID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Post("/{rctiID}/lines", h.handleAddLine)
		r.With(middleware.RequirePermission(auth.PermWrite, h.Perms)).Delete("/{rctiID}/lines/{lineID}", h.handleDeleteLine)
		r.With(middleware.RequirePermission(auth.PermFinalize, h.Perms)).Post("/{rctiID}/finalize", h.handleFinalize)
		r.With(middleware.RequirePermission(auth.PermFinalize, h.Perms)).Post("/{rctiID}/mark-paid", h.handleMarkPaid)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/{rctiID}/pdf", h.handlePDF)
		r.With(middleware.RequirePermission(auth.PermRead, h.Perms)).Get("/{rctiID}/export", h.handleExport)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	page := shared.ParsePagination(r, 50, 200)
	filter := rcti.Filter{Status: strings.ToLower(strings.TrimSpace(query.Get("status")))}

	validator := shared.NewValidator()
	if raw := query.Get("driverId"); raw != "" {
		id, ok := shared.ParseID(raw)
		if !ok {
			validator.Add("driverId", "must be a positive integer")
		}
		filter.DriverID = id
	}
	validator.Enum("status", filter.Status, rcti.Statuses)
	if validator.Reject(w, requestID) {
		return
	}

	items, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		middleware.LogError(r, "list rctis failed", err)
		api.Fail(w, http.StatusInternalServerError, "rcti_list_failed", "failed to list rctis", requestID)
		return
	}
	if items == nil {
		items = []rcti.Rcti{}
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
	var weekEnding time.Time
	if strings.TrimSpace(payload.WeekEnding) != "" {
		weekEnding, _ = validator.Date("weekEnding", payload.WeekEnding)
	}
	if validator.Reject(w, requestID) {
		return
	}

	created, err := h.Service.CreateDraft(r.Context(), payload.DriverID, weekEnding)
	if err != nil {
		h.fail(w, r, err, "rcti_create_failed", "failed to create rcti")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "rcti.create", "rcti", formatID(created.ID), nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "rcti_get_failed", "failed to load rcti")
		return
	}
	api.Success(w, detail, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}

	var payload linePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	payload.Customer = strings.TrimSpace(payload.Customer)

	validator := shared.NewValidator()
	validator.Struct(payload)
	if strings.EqualFold(payload.Customer, rcti.BreakCustomer) {
		validator.Add("customer", "is reserved for break lines")
	}
	validator.NonNegative("chargedHours", &payload.ChargedHours, money.MaxHours)
	validator.NonNegative("ratePerHour", &payload.RatePerHour, money.MaxAmount)
	in := rcti.LineInput{
		Customer:     payload.Customer,
		TruckType:    payload.TruckType,
		Description:  payload.Description,
		ChargedHours: payload.ChargedHours,
		RatePerHour:  payload.RatePerHour,
	}
	if strings.TrimSpace(payload.JobDate) != "" {
		if jobDate, ok := validator.Date("jobDate", payload.JobDate); ok {
			in.JobDate = &jobDate
		}
	}
	if validator.Reject(w, requestID) {
		return
	}

	line, totals, err := h.Service.AddLine(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err, "rcti_line_create_failed", "failed to add line")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "rcti.line.create", "rcti", formatID(id), nil, line)
	api.Created(w, lineChange{Line: line, Totals: totals}, requestID)
}

func (h *Handler) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}
	lineID, ok := shared.ParseID(chi.URLParam(r, "lineID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "rcti line not found", requestID)
		return
	}

	line, totals, err := h.Service.DeleteLine(r.Context(), id, lineID)
	if err != nil {
		h.fail(w, r, err, "rcti_line_delete_failed", "failed to delete line")
		return
	}

	shared.RecordAudit(r, h.Audit, user.UserID, "rcti.line.delete", "rcti", formatID(id), line, nil)
	api.Success(w, lineChange{Line: line, Totals: totals}, requestID)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	var payload finalizePayload
	if len(bytes.TrimSpace(body)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
			return
		}
	}
	overrides, err := deduction.ParseOverrides(payload.DeductionOverrides)
	if err != nil {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "deductionOverrides", Reason: err.Error()}})
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(append([]byte(formatID(id)+":"), body...))
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, finalizeEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for a different request", requestID)
			return
		}
		if err != nil {
			middleware.LogError(r, "idempotency check failed", err)
		}
		if found {
			api.Success(w, stored, requestID)
			return
		}
	}

	result, err := h.Service.Finalize(r.Context(), id, overrides)
	if err != nil {
		h.fail(w, r, err, "rcti_finalize_failed", "failed to finalize rcti")
		return
	}
	h.Metrics.RecordFinalize()

	shared.RecordAudit(r, h.Audit, user.UserID, finalizeEndpoint, "rcti", formatID(id), nil, result)
	if idempotencyKey != "" && h.Idempotency != nil {
		if encoded, err := json.Marshal(result); err != nil {
			middleware.LogError(r, "finalize response marshal failed", err)
		} else if err := h.Idempotency.Save(r.Context(), user.UserID, finalizeEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			middleware.LogError(r, "idempotency save failed", err)
		}
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}

	paid, err := h.Service.MarkPaid(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "rcti_mark_paid_failed", "failed to mark rcti paid")
		return
	}
	shared.RecordAudit(r, h.Audit, user.UserID, "rcti.mark_paid", "rcti", formatID(id), nil, paid)
	api.Success(w, paid, requestID)
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "rcti_pdf_failed", "failed to render rcti")
		return
	}

	var buf bytes.Buffer
	if err := rcti.RenderPDF(&buf, detail, h.Company); err != nil {
		middleware.LogError(r, "render rcti pdf failed", err)
		api.Fail(w, http.StatusInternalServerError, "rcti_pdf_failed", "failed to render rcti", middleware.GetRequestID(r.Context()))
		return
	}
	writeAttachment(w, "application/pdf", detail.InvoiceNumber+".pdf", buf.Bytes())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.rctiID(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "rcti_export_failed", "failed to export rcti")
		return
	}

	var buf bytes.Buffer
	if err := rcti.WriteXLSX(&buf, detail); err != nil {
		middleware.LogError(r, "export rcti workbook failed", err)
		api.Fail(w, http.StatusInternalServerError, "rcti_export_failed", "failed to export rcti", middleware.GetRequestID(r.Context()))
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", detail.InvoiceNumber+".xlsx", buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) rctiID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := shared.ParseID(chi.URLParam(r, "rctiID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "rcti not found", middleware.GetRequestID(r.Context()))
	}
	return id, ok
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, rcti.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "rcti not found", requestID)
	case errors.Is(err, rcti.ErrLineNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "rcti line not found", requestID)
	case errors.Is(err, rcti.ErrDriverNotFound):
		api.Fail(w, http.StatusNotFound, "driver_not_found", "driver not found", requestID)
	case errors.Is(err, rcti.ErrEmployeeDriver):
		api.Fail(w, http.StatusBadRequest, "employee_driver", "rctis cannot be issued to employee drivers", requestID)
	case errors.Is(err, rcti.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "rcti_exists", "an rcti already exists for this driver and week", requestID)
	case errors.Is(err, rcti.ErrNotDraft):
		api.Fail(w, http.StatusBadRequest, "rcti_not_draft", "only draft rctis can be changed or finalised", requestID)
	case errors.Is(err, rcti.ErrNoLines):
		api.Fail(w, http.StatusBadRequest, "rcti_no_lines", "an rcti needs at least one line before it is finalised", requestID)
	case errors.Is(err, rcti.ErrNotFinalised):
		api.Fail(w, http.StatusBadRequest, "rcti_not_finalised", "only finalised rctis can be marked paid", requestID)
	case errors.Is(err, rcti.ErrReservedCustomer):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "customer", Reason: "is reserved for break lines"}})
	case errors.Is(err, rcti.ErrInvalidLine):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "chargedHours", Reason: err.Error()}})
	case errors.Is(err, deduction.ErrInvalidOverride):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "deductionOverrides", Reason: err.Error()}})
	default:
		middleware.LogError(r, message, err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

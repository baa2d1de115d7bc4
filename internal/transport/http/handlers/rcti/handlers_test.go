package rctihandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"worklog/internal/domain/auth"
	"worklog/internal/domain/deduction"
	"worklog/internal/domain/rcti"
	"worklog/internal/platform/config"
	"worklog/internal/platform/metrics"
	"worklog/internal/transport/http/middleware"
)

type fakeService struct {
	items         map[int64]rcti.Rcti
	finalizeCalls int
	lastOverrides deduction.Overrides
	lastLine      rcti.LineInput
	lastFilter    rcti.Filter
}

func newFakeService() *fakeService {
	week := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return &fakeService{items: map[int64]rcti.Rcti{
		1: {ID: 1, DriverID: 1, WeekEnding: week, InvoiceNumber: "RCTI-1-20240310", Status: rcti.StatusDraft, Total: decimal.NewFromInt(1000)},
		2: {ID: 2, DriverID: 1, WeekEnding: week, InvoiceNumber: "RCTI-1-20240303", Status: rcti.StatusFinalised, Total: decimal.NewFromInt(900)},
	}}
}

func (f *fakeService) List(_ context.Context, filter rcti.Filter, _, _ int) ([]rcti.Rcti, error) {
	f.lastFilter = filter
	return []rcti.Rcti{f.items[1]}, nil
}

func (f *fakeService) Detail(_ context.Context, id int64) (rcti.Detail, error) {
	r, ok := f.items[id]
	if !ok {
		return rcti.Detail{}, rcti.ErrNotFound
	}
	jobID := int64(4)
	return rcti.Detail{
		Rcti:       r,
		DriverName: "Sam Carter",
		Lines: []rcti.Line{{ID: 1, RctiID: id, JobID: &jobID, Customer: "Acme", TruckType: "Tipper",
			ChargedHours: decimal.NewFromInt(8), RatePerHour: decimal.NewFromInt(90),
			AmountExGST: decimal.NewFromInt(720), GSTAmount: decimal.NewFromInt(72), AmountIncGST: decimal.NewFromInt(792)}},
	}, nil
}

func (f *fakeService) CreateDraft(_ context.Context, driverID int64, weekEnding time.Time) (rcti.Rcti, error) {
	switch driverID {
	case 2:
		return rcti.Rcti{}, rcti.ErrEmployeeDriver
	case 3:
		return rcti.Rcti{}, rcti.ErrDuplicate
	}
	return rcti.Rcti{ID: 7, DriverID: driverID, WeekEnding: weekEnding, InvoiceNumber: rcti.InvoiceNumber(driverID, weekEnding), Status: rcti.StatusDraft}, nil
}

func (f *fakeService) AddLine(_ context.Context, id int64, in rcti.LineInput) (rcti.Line, rcti.Totals, error) {
	f.lastLine = in
	r, ok := f.items[id]
	if !ok {
		return rcti.Line{}, rcti.Totals{}, rcti.ErrNotFound
	}
	if r.Status != rcti.StatusDraft {
		return rcti.Line{}, rcti.Totals{}, rcti.ErrNotDraft
	}
	return rcti.Line{ID: 11, RctiID: id, Customer: in.Customer}, rcti.Totals{Total: decimal.NewFromInt(1055)}, nil
}

func (f *fakeService) DeleteLine(_ context.Context, id, lineID int64) (rcti.Line, rcti.Totals, error) {
	if _, ok := f.items[id]; !ok {
		return rcti.Line{}, rcti.Totals{}, rcti.ErrNotFound
	}
	if lineID != 1 {
		return rcti.Line{}, rcti.Totals{}, rcti.ErrLineNotFound
	}
	return rcti.Line{ID: 1, RctiID: id}, rcti.Totals{}, nil
}

func (f *fakeService) Finalize(_ context.Context, id int64, overrides deduction.Overrides) (rcti.FinalizeResult, error) {
	f.finalizeCalls++
	f.lastOverrides = overrides
	r, ok := f.items[id]
	if !ok {
		return rcti.FinalizeResult{}, rcti.ErrNotFound
	}
	if r.Status != rcti.StatusDraft {
		return rcti.FinalizeResult{}, rcti.ErrNotDraft
	}
	r.Status = rcti.StatusFinalised
	r.Total = decimal.NewFromInt(900)
	f.items[id] = r
	return rcti.FinalizeResult{Rcti: r, Deductions: deduction.ApplyResult{TotalDeductionAmount: decimal.NewFromInt(100)}}, nil
}

func (f *fakeService) MarkPaid(_ context.Context, id int64) (rcti.Rcti, error) {
	r, ok := f.items[id]
	if !ok {
		return rcti.Rcti{}, rcti.ErrNotFound
	}
	if r.Status != rcti.StatusFinalised {
		return rcti.Rcti{}, rcti.ErrNotFinalised
	}
	r.Status = rcti.StatusPaid
	return r, nil
}

type memoryIdempotency struct {
	hashes    map[string]string
	responses map[string]json.RawMessage
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{hashes: map[string]string{}, responses: map[string]json.RawMessage{}}
}

func (m *memoryIdempotency) Check(_ context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	id := userID + endpoint + key
	hash, ok := m.hashes[id]
	if !ok {
		return nil, false, nil
	}
	if hash != requestHash {
		return nil, false, middleware.ErrIdempotencyConflict
	}
	return m.responses[id], true, nil
}

func (m *memoryIdempotency) Save(_ context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	id := userID + endpoint + key
	m.hashes[id] = requestHash
	m.responses[id] = response
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func newRouter(h *Handler, role string) http.Handler {
	h.Perms = auth.NewAccessPolicy(config.Access{
		ReadRoles:     []string{"admin", "manager", "viewer"},
		WriteRoles:    []string{"admin", "manager"},
		FinalizeRoles: []string{"admin"},
	})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "1", RoleName: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("expected %s, got %s", code, rec.Body.String())
	}
	return env
}

func TestFinalizeWithOverrides(t *testing.T) {
	svc := newFakeService()
	collector := metrics.New()
	router := newRouter(NewHandler(svc, nil, nil, nil, collector, rcti.Company{}), auth.RoleAdmin)

	rec := send(router, http.MethodPost, "/rcti/1/finalize", `{"deductionOverrides":{"5":"25.50","6":null}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := svc.lastOverrides[5]; got == nil || !got.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected override for 5: %v", got)
	}
	if got, ok := svc.lastOverrides[6]; !ok || got != nil {
		t.Fatalf("expected explicit skip for 6, got %v %v", got, ok)
	}
	if collector.Snapshot()["rctiFinalizedTotal"] != uint64(1) {
		t.Fatalf("expected finalize metric, got %+v", collector.Snapshot())
	}

	var result rcti.FinalizeResult
	if err := json.Unmarshal(decode(t, rec).Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Rcti.Status != rcti.StatusFinalised || !result.Rcti.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("unexpected result %+v", result.Rcti)
	}

	expectError(t, send(router, http.MethodPost, "/rcti/1/finalize", "", nil), http.StatusBadRequest, "rcti_not_draft")
}

func TestFinalizeValidation(t *testing.T) {
	router := newRouter(NewHandler(newFakeService(), nil, nil, nil, nil, rcti.Company{}), auth.RoleAdmin)

	env := expectError(t, send(router, http.MethodPost, "/rcti/1/finalize", `{"deductionOverrides":{"5":"abc"}}`, nil), http.StatusBadRequest, "validation_error")
	if len(env.Error.Details.Fields) != 1 || env.Error.Details.Fields[0].Field != "deductionOverrides" {
		t.Fatalf("unexpected fields %+v", env.Error.Details.Fields)
	}
	expectError(t, send(router, http.MethodPost, "/rcti/1/finalize", `{"overrides":{}}`, nil), http.StatusBadRequest, "invalid_payload")
	expectError(t, send(router, http.MethodPost, "/rcti/99/finalize", `{}`, nil), http.StatusNotFound, "not_found")
	expectError(t, send(router, http.MethodPost, "/rcti/abc/finalize", `{}`, nil), http.StatusNotFound, "not_found")
}

func TestFinalizeRequiresFinalizePermission(t *testing.T) {
	svc := newFakeService()
	router := newRouter(NewHandler(svc, nil, nil, nil, nil, rcti.Company{}), auth.RoleManager)

	expectError(t, send(router, http.MethodPost, "/rcti/1/finalize", `{}`, nil), http.StatusForbidden, "forbidden")
	if svc.finalizeCalls != 0 {
		t.Fatal("finalize must not run without permission")
	}
}

func TestFinalizeIdempotencyKeyReplays(t *testing.T) {
	svc := newFakeService()
	router := newRouter(NewHandler(svc, nil, nil, newMemoryIdempotency(), nil, rcti.Company{}), auth.RoleAdmin)
	headers := map[string]string{"Idempotency-Key": "finalize-1"}

	first := send(router, http.MethodPost, "/rcti/1/finalize", `{}`, headers)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	second := send(router, http.MethodPost, "/rcti/1/finalize", `{}`, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("expected replayed 200, got %d: %s", second.Code, second.Body.String())
	}
	if svc.finalizeCalls != 1 {
		t.Fatalf("expected one finalize call, got %d", svc.finalizeCalls)
	}
	if !bytes.Equal(decode(t, first).Data, decode(t, second).Data) {
		t.Fatal("expected replay to return the stored result")
	}

	expectError(t, send(router, http.MethodPost, "/rcti/1/finalize", `{"deductionOverrides":{"1":0}}`, headers), http.StatusConflict, "idempotency_conflict")
}

func TestCreateDraft(t *testing.T) {
	router := newRouter(NewHandler(newFakeService(), nil, nil, nil, nil, rcti.Company{}), auth.RoleManager)

	rec := send(router, http.MethodPost, "/rcti", `{"driverId":1,"weekEnding":"2024-03-10"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created rcti.Rcti
	if err := json.Unmarshal(decode(t, rec).Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.InvoiceNumber != "RCTI-1-20240310" {
		t.Fatalf("unexpected invoice number %q", created.InvoiceNumber)
	}

	expectError(t, send(router, http.MethodPost, "/rcti", `{"driverId":2,"weekEnding":"2024-03-10"}`, nil), http.StatusBadRequest, "employee_driver")
	expectError(t, send(router, http.MethodPost, "/rcti", `{"driverId":3,"weekEnding":"2024-03-10"}`, nil), http.StatusConflict, "rcti_exists")
	env := expectError(t, send(router, http.MethodPost, "/rcti", `{"driverId":1}`, nil), http.StatusBadRequest, "validation_error")
	if env.Error.Details.Fields[0].Field != "weekEnding" {
		t.Fatalf("unexpected fields %+v", env.Error.Details.Fields)
	}
}

func TestLines(t *testing.T) {
	svc := newFakeService()
	router := newRouter(NewHandler(svc, nil, nil, nil, nil, rcti.Company{}), auth.RoleManager)

	rec := send(router, http.MethodPost, "/rcti/1/lines", `{"jobDate":"2024-03-08","customer":" Depot ","truckType":"Tipper","chargedHours":1,"ratePerHour":50}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastLine.Customer != "Depot" || svc.lastLine.JobDate == nil || !svc.lastLine.RatePerHour.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected line input %+v", svc.lastLine)
	}

	env := expectError(t, send(router, http.MethodPost, "/rcti/1/lines", `{"customer":"break deduction","chargedHours":1,"ratePerHour":50}`, nil), http.StatusBadRequest, "validation_error")
	if env.Error.Details.Fields[0].Field != "customer" {
		t.Fatalf("unexpected fields %+v", env.Error.Details.Fields)
	}
	expectError(t, send(router, http.MethodPost, "/rcti/1/lines", `{"customer":"Depot","chargedHours":-1,"ratePerHour":50}`, nil), http.StatusBadRequest, "validation_error")
	expectError(t, send(router, http.MethodPost, "/rcti/2/lines", `{"customer":"Depot","chargedHours":1,"ratePerHour":50}`, nil), http.StatusBadRequest, "rcti_not_draft")

	if rec := send(router, http.MethodDelete, "/rcti/1/lines/1", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	expectError(t, send(router, http.MethodDelete, "/rcti/1/lines/8", "", nil), http.StatusNotFound, "not_found")
	expectError(t, send(router, http.MethodDelete, "/rcti/9/lines/1", "", nil), http.StatusNotFound, "not_found")
}

func TestListValidatesFilters(t *testing.T) {
	svc := newFakeService()
	router := newRouter(NewHandler(svc, nil, nil, nil, nil, rcti.Company{}), auth.RoleViewer)

	if rec := send(router, http.MethodGet, "/rcti?driverId=1&status=Draft", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastFilter.DriverID != 1 || svc.lastFilter.Status != rcti.StatusDraft {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}
	expectError(t, send(router, http.MethodGet, "/rcti?status=void", "", nil), http.StatusBadRequest, "validation_error")
	expectError(t, send(router, http.MethodGet, "/rcti?driverId=x", "", nil), http.StatusBadRequest, "validation_error")
}

func TestMarkPaid(t *testing.T) {
	router := newRouter(NewHandler(newFakeService(), nil, nil, nil, nil, rcti.Company{}), auth.RoleAdmin)

	if rec := send(router, http.MethodPost, "/rcti/2/mark-paid", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	expectError(t, send(router, http.MethodPost, "/rcti/1/mark-paid", "", nil), http.StatusBadRequest, "rcti_not_finalised")
}

func TestDocuments(t *testing.T) {
	router := newRouter(NewHandler(newFakeService(), nil, nil, nil, nil, rcti.Company{Name: "WorkLog Transport"}), auth.RoleViewer)

	pdf := send(router, http.MethodGet, "/rcti/1/pdf", "", nil)
	if pdf.Code != http.StatusOK || pdf.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %q", pdf.Code, pdf.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected pdf body")
	}
	if !strings.Contains(pdf.Header().Get("Content-Disposition"), "RCTI-1-20240310.pdf") {
		t.Fatalf("unexpected disposition %q", pdf.Header().Get("Content-Disposition"))
	}

	xlsx := send(router, http.MethodGet, "/rcti/2/export", "", nil)
	if xlsx.Code != http.StatusOK || !bytes.HasPrefix(xlsx.Body.Bytes(), []byte("PK")) {
		t.Fatalf("unexpected export response %d", xlsx.Code)
	}

	expectError(t, send(router, http.MethodGet, "/rcti/42/pdf", "", nil), http.StatusNotFound, "not_found")
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"worklog/internal/app/server"
	"worklog/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type apiClient struct {
	t       *testing.T
	client  *http.Client
	baseURL string
	token   string
}

func newTestApp(t *testing.T) *apiClient {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		DataEncryptionKey:  "0123456789abcdef0123456789abcdef",
		Environment:        "test",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
		CompanyName:        "WorkLog Test",
		Access: config.Access{
			ReadRoles:     []string{"admin", "manager", "viewer"},
			WriteRoles:    []string{"admin", "manager"},
			FinalizeRoles: []string{"admin"},
		},
	}

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)

	c := &apiClient{t: t, client: ts.Client(), baseURL: ts.URL}
	status, env, _ := c.do(http.MethodPost, "/api/auth/login", map[string]any{
		"email":    cfg.SeedAdminEmail,
		"password": cfg.SeedAdminPassword,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("login failed with %d", status)
	}
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &login)
	if login.Token == "" {
		t.Fatal("expected token")
	}
	c.token = login.Token
	return c
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) (int, envelope, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			c.t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode, env, raw
}

func (c *apiClient) mustCreate(path string, body any, out any) {
	c.t.Helper()
	status, env, raw := c.do(http.MethodPost, path, body, nil)
	if status != http.StatusCreated {
		c.t.Fatalf("POST %s: expected 201, got %d: %s", path, status, raw)
	}
	decodeData(c.t, env, out)
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

type idOnly struct {
	ID int64 `json:"id"`
}

func TestRctiFinalizeJourney(t *testing.T) {
	c := newTestApp(t)

	var drv idOnly
	c.mustCreate("/api/drivers", map[string]any{
		"name":       fmt.Sprintf("Journey Driver %d", time.Now().UnixNano()),
		"type":       "Contractor",
		"breaks":     0.5,
		"gstStatus":  "registered",
		"gstMode":    "exclusive",
		"truckRates": map[string]any{"Tipper": 90},
	}, &drv)

	for _, day := range []string{"2024-03-05", "2024-03-06"} {
		var j idOnly
		c.mustCreate("/api/jobs", map[string]any{
			"date":         day,
			"driverId":     drv.ID,
			"customer":     "Acme Quarries",
			"truckType":    "Tipper",
			"chargedHours": 8,
		}, &j)
	}

	var draft struct {
		ID    int64           `json:"id"`
		Total decimal.Decimal `json:"total"`
	}
	c.mustCreate("/api/rcti", map[string]any{"driverId": drv.ID, "weekEnding": "2024-03-10"}, &draft)
	if !draft.Total.Equal(decimal.NewFromInt(1485)) {
		t.Fatalf("expected draft total 1485, got %s", draft.Total)
	}

	status, env, _ := c.do(http.MethodPost, "/api/rcti", map[string]any{"driverId": drv.ID, "weekEnding": "2024-03-10"}, nil)
	if status != http.StatusConflict || env.Error == nil || env.Error.Code != "rcti_exists" {
		t.Fatalf("expected duplicate rcti conflict, got %d", status)
	}

	var ded idOnly
	c.mustCreate("/api/rcti-deductions", map[string]any{
		"driverId":       drv.ID,
		"type":           "deduction",
		"description":    "Truck hire",
		"totalAmount":    300,
		"frequency":      "weekly",
		"amountPerCycle": 100,
	}, &ded)

	var pending []struct {
		ID            int64           `json:"id"`
		AmountToApply decimal.Decimal `json:"amountToApply"`
	}
	status, env, _ = c.do(http.MethodGet, fmt.Sprintf("/api/rcti-deductions/pending?driverId=%d&weekEnding=2024-03-10", drv.ID), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("pending failed with %d", status)
	}
	decodeData(t, env, &pending)
	if len(pending) != 1 || !pending[0].AmountToApply.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected pending deductions %+v", pending)
	}

	finalizePath := fmt.Sprintf("/api/rcti/%d/finalize", draft.ID)
	headers := map[string]string{"Idempotency-Key": fmt.Sprintf("journey-%d", draft.ID)}
	status, first, raw := c.do(http.MethodPost, finalizePath, map[string]any{}, headers)
	if status != http.StatusOK {
		t.Fatalf("finalize failed with %d: %s", status, raw)
	}
	var result struct {
		Rcti struct {
			Status         string          `json:"status"`
			Total          decimal.Decimal `json:"total"`
			DeductionTotal decimal.Decimal `json:"deductionTotal"`
		} `json:"rcti"`
	}
	decodeData(t, first, &result)
	if result.Rcti.Status != "finalised" || !result.Rcti.Total.Equal(decimal.NewFromInt(1385)) || !result.Rcti.DeductionTotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected finalize result %+v", result.Rcti)
	}

	status, replay, _ := c.do(http.MethodPost, finalizePath, map[string]any{}, headers)
	if status != http.StatusOK {
		t.Fatalf("expected idempotent replay, got %d", status)
	}
	replayed := result
	decodeData(t, replay, &replayed)
	if replayed.Rcti.Status != "finalised" || !replayed.Rcti.Total.Equal(result.Rcti.Total) {
		t.Fatalf("unexpected replayed result %+v", replayed.Rcti)
	}

	status, env, _ = c.do(http.MethodPost, finalizePath, nil, nil)
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != "rcti_not_draft" {
		t.Fatalf("expected rcti_not_draft, got %d", status)
	}

	var ledger struct {
		AmountPaid      decimal.Decimal   `json:"amountPaid"`
		AmountRemaining decimal.Decimal   `json:"amountRemaining"`
		Applications    []json.RawMessage `json:"applications"`
	}
	status, env, _ = c.do(http.MethodGet, fmt.Sprintf("/api/rcti-deductions/%d", ded.ID), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("get deduction failed with %d", status)
	}
	decodeData(t, env, &ledger)
	if !ledger.AmountPaid.Equal(decimal.NewFromInt(100)) || !ledger.AmountRemaining.Equal(decimal.NewFromInt(200)) || len(ledger.Applications) != 1 {
		t.Fatalf("unexpected ledger state %+v", ledger)
	}

	status, _, pdf := c.do(http.MethodGet, fmt.Sprintf("/api/rcti/%d/pdf", draft.ID), nil, nil)
	if status != http.StatusOK || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected pdf, got %d", status)
	}
}

func TestEmployeeDriverCannotHaveDeductions(t *testing.T) {
	c := newTestApp(t)

	var drv idOnly
	c.mustCreate("/api/drivers", map[string]any{
		"name": fmt.Sprintf("Employee %d", time.Now().UnixNano()),
		"type": "Employee",
	}, &drv)

	status, env, _ := c.do(http.MethodPost, "/api/rcti-deductions", map[string]any{
		"driverId":    drv.ID,
		"type":        "deduction",
		"description": "Uniform",
		"totalAmount": 50,
		"frequency":   "once",
	}, nil)
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != "employee_driver" {
		t.Fatalf("expected employee_driver, got %d", status)
	}
}

func TestDeleteLineRecalculatesTotals(t *testing.T) {
	c := newTestApp(t)

	var drv idOnly
	c.mustCreate("/api/drivers", map[string]any{
		"name":       fmt.Sprintf("Line Driver %d", time.Now().UnixNano()),
		"type":       "Subcontractor",
		"breaks":     0.5,
		"truckRates": map[string]any{"Semi": 100},
	}, &drv)
	for _, day := range []string{"2024-04-01", "2024-04-02"} {
		var j idOnly
		c.mustCreate("/api/jobs", map[string]any{"date": day, "driverId": drv.ID, "customer": "Port", "truckType": "Semi", "chargedHours": 10}, &j)
	}

	var draft idOnly
	c.mustCreate("/api/rcti", map[string]any{"driverId": drv.ID, "weekEnding": "2024-04-07"}, &draft)

	var detail struct {
		Lines []struct {
			ID    int64  `json:"id"`
			JobID *int64 `json:"jobId"`
		} `json:"lines"`
	}
	status, env, _ := c.do(http.MethodGet, fmt.Sprintf("/api/rcti/%d", draft.ID), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("get rcti failed with %d", status)
	}
	decodeData(t, env, &detail)
	var jobLine int64
	for _, l := range detail.Lines {
		if l.JobID != nil {
			jobLine = l.ID
			break
		}
	}
	if jobLine == 0 {
		t.Fatal("expected a job line")
	}

	status, env, raw := c.do(http.MethodDelete, fmt.Sprintf("/api/rcti/%d/lines/%d", draft.ID, jobLine), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("delete line failed with %d: %s", status, raw)
	}
	var change struct {
		Totals struct {
			Subtotal decimal.Decimal `json:"subtotal"`
		} `json:"totals"`
	}
	decodeData(t, env, &change)
	// one 10h shift at 100 less a half hour break, GST free
	if !change.Totals.Subtotal.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("expected subtotal 950, got %s", change.Totals.Subtotal)
	}
}

package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"worklog/internal/domain/auth"
	"worklog/internal/transport/http/middleware"
)

type fakeAuthenticator struct {
	calls int
	err   error
}

func (f *fakeAuthenticator) Login(_ context.Context, email, _ string) (string, auth.User, error) {
	f.calls++
	if f.err != nil {
		return "", auth.User{}, f.err
	}
	return "signed-token", auth.User{ID: "1", Email: email, Role: auth.RoleAdmin}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func postLogin(t *testing.T, h *Handler, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "success", body: `{"email":"admin@example.com","password":"pw"}`, wantCode: http.StatusOK},
		{name: "malformed", body: `{"email":`, wantCode: http.StatusBadRequest, wantErr: "invalid_payload"},
		{name: "missing password", body: `{"email":"admin@example.com"}`, wantCode: http.StatusBadRequest, wantErr: "validation_error"},
		{name: "bad email", body: `{"email":"admin","password":"pw"}`, wantCode: http.StatusBadRequest, wantErr: "validation_error"},
		{name: "wrong credentials", body: `{"email":"admin@example.com","password":"pw"}`, err: auth.ErrInvalidCredentials, wantCode: http.StatusUnauthorized, wantErr: "invalid_credentials"},
		{name: "store failure", body: `{"email":"admin@example.com","password":"pw"}`, err: errors.New("db down"), wantCode: http.StatusInternalServerError, wantErr: "login_failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeAuthenticator{err: tc.err}, nil)
			code, env := postLogin(t, h, tc.body)
			if code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, code)
			}
			if tc.wantErr == "" {
				if !env.Success || !bytes.Contains(env.Data, []byte("signed-token")) {
					t.Fatalf("unexpected success body %s", env.Data)
				}
				return
			}
			if env.Error == nil || env.Error.Code != tc.wantErr {
				t.Fatalf("expected error %s, got %+v", tc.wantErr, env.Error)
			}
		})
	}
}

func TestHandleMe(t *testing.T) {
	h := NewHandler(&fakeAuthenticator{}, nil)

	rec := httptest.NewRecorder()
	h.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "3", Email: "v@example.com", RoleName: auth.RoleViewer}))
	rec = httptest.NewRecorder()
	h.HandleMe(rec, req)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"role":"viewer"`)) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: "u1", Timezone: "Europe/Berlin"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := UserID(r.Context()); got != "u1" {
			t.Errorf("expected user u1 in context, got %q", got)
		}
		if got := Timezone(r.Context()); got != "Europe/Berlin" {
			t.Errorf("expected zone claim in context, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_Rejects(t *testing.T) {
	secret := []byte("test-secret")
	token, _ := Issue(secret, Claims{UserID: "u1"}, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
	}{
		{"missing header", "/api/v1/tasks", ""},
		{"query token", "/api/v1/tasks?token=" + token, ""},
		{"basic scheme", "/api/v1/tasks", "Basic " + token},
		{"bad token", "/api/v1/tasks", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run")
			})
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			Middleware(secret)(next).ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if rr.Body.String() != `{"error":"unauthorized"}` {
				t.Fatalf("unexpected body %s", rr.Body.String())
			}
		})
	}
}

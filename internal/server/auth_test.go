package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		apiKey        string
		header        string
		wantCode      int
		wantChallenge string
		wantError     string
	}{
		{"disabled", "", "", http.StatusOK, "", ""},
		{"disabled ignores header", "", "Bearer anything", http.StatusOK, "", ""},
		{"missing header", "secret", "", http.StatusUnauthorized, `Bearer realm="paperqa"`, "authorization required"},
		{"scheme without token", "secret", "Bearer", http.StatusUnauthorized, `Bearer realm="paperqa"`, "authorization required"},
		{"scheme with blank token", "secret", "Bearer   ", http.StatusUnauthorized, `Bearer realm="paperqa"`, "authorization required"},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `Bearer realm="paperqa"`, "authorization required"},
		{"wrong token", "secret", "Bearer wrong", http.StatusUnauthorized, `Bearer realm="paperqa" error="invalid_token"`, "invalid token"},
		{"token prefix", "secret", "Bearer secre", http.StatusUnauthorized, `Bearer realm="paperqa" error="invalid_token"`, "invalid token"},
		{"correct token", "secret", "Bearer secret", http.StatusOK, "", ""},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, "", ""},
		{"padded token", "secret", "Bearer  secret ", http.StatusOK, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/documents/abc", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tt.apiKey, okHandler).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tt.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantChallenge)
			}
			if tt.wantError == "" {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bearer mytoken":     "mytoken",
		"bearer mytoken":     "mytoken",
		"BEARER mytoken":     "mytoken",
		"Bearer  spaced ":    "spaced",
		"Bearer a b":         "a b",
		"Bearer":             "",
		"Bearer\tmytoken":    "",
		"Token mytoken":      "",
		"Basic dXNlcjpwYXNz": "",
		"":                   "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("header %q: token = %q, want %q", header, got, want)
		}
	}
}

func TestRouter_AuthScope(t *testing.T) {
	t.Parallel()
	api := newAPIHarness(t, Config{APIKey: "secret"})

	send := func(method, path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "127.0.0.1:5000"
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		api.h.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"get document without token", http.MethodGet, "/api/documents/missing", "", http.StatusUnauthorized},
		{"delete document without token", http.MethodDelete, "/api/documents/missing", "", http.StatusUnauthorized},
		{"ask without token", http.MethodPost, "/api/documents/missing/ask", "", http.StatusUnauthorized},
		{"load with wrong token", http.MethodPost, "/api/documents", "Bearer nope", http.StatusUnauthorized},
		{"get document with token", http.MethodGet, "/api/documents/missing", "Bearer secret", http.StatusNotFound},
		{"lowercase scheme reaches handler", http.MethodDelete, "/api/documents/missing", "bearer secret", http.StatusNotFound},
		{"health is public", http.MethodGet, "/api/health", "", http.StatusOK},
		{"health ignores bad token", http.MethodGet, "/api/health", "Bearer nope", http.StatusOK},
		{"ready is public", http.MethodGet, "/api/ready", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := send(tt.method, tt.path, tt.auth)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without a WWW-Authenticate challenge")
			}
		})
	}
}

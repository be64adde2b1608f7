package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newHandler(t *testing.T, wantID string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := KeyIDFrom(r.Context())
		if id != wantID {
			t.Errorf("key ID in context = %q, want %q", id, wantID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	store := NewStatic("", map[string]string{"s3cret": "team-a"})
	skip := map[string]struct{}{"/health": {}}

	t.Run("valid key", func(t *testing.T) {
		h := store.Middleware(skip)(newHandler(t, "team-a"))
		req := httptest.NewRequest("GET", "/orders", nil)
		req.Header.Set("X-API-Key", "s3cret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		h := store.Middleware(skip)(newHandler(t, ""))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/orders", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		h := store.Middleware(skip)(newHandler(t, ""))
		req := httptest.NewRequest("GET", "/orders", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("skip path", func(t *testing.T) {
		h := store.Middleware(skip)(newHandler(t, ""))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 on skipped path", rec.Code)
		}
	})
}

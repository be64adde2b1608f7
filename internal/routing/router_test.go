package routing

import (
	"net/http/httptest"
	"net/url"
	"testing"
)

func newRoute(id, prefix string, methods ...string) *Route {
	ms := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		ms[m] = struct{}{}
	}
	u, _ := url.Parse("http://upstream.local")
	return &Route{ID: id, Methods: ms, Prefix: prefix, UpURL: u}
}

func TestMatch(t *testing.T) {
	r := New()
	r.Add(newRoute("orders", "/orders", "GET", "POST"))
	r.Add(newRoute("users", "/users/", "GET"))

	tests := []struct {
		method, path string
		wantID       string
		wantOK       bool
	}{
		{"GET", "/orders", "orders", true},
		{"get", "/orders/42", "orders", true},
		{"POST", "/orders/42/items", "orders", true},
		{"DELETE", "/orders", "", false},
		{"GET", "/users/7", "users", true}, // trailing slash in config
		{"GET", "/ordersx", "", false},     // prefix must end at a segment
		{"GET", "/nope", "", false},
	}

	for _, tt := range tests {
		rt, ok := r.Match(tt.method, tt.path)
		if ok != tt.wantOK {
			t.Errorf("Match(%s %s) ok = %v, want %v", tt.method, tt.path, ok, tt.wantOK)
			continue
		}
		if ok && rt.ID != tt.wantID {
			t.Errorf("Match(%s %s) = %s, want %s", tt.method, tt.path, rt.ID, tt.wantID)
		}
	}
}

func TestRouteContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/orders", nil)

	if _, ok := RouteFrom(req); ok {
		t.Fatal("RouteFrom on bare request reported a route")
	}

	rt := newRoute("orders", "/orders", "GET")
	req = WithRoute(req, rt)
	got, ok := RouteFrom(req)
	if !ok || got != rt {
		t.Fatalf("RouteFrom = %v, %v; want the injected route", got, ok)
	}
}

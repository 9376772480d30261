package metrics

import "testing"

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/health", "/health"},
		{"/api/v1/tree", "/api/v1/tree"},
		{"/api/v1/tree/proj/src/main.go", "/api/v1/tree"},
		{"/api/v1/sessions/4b1c/select", "/api/v1/sessions"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := RouteLabel(tt.path); got != tt.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

package metricsx

import "testing"

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/api/v1/tickets":                    "/api/v1/tickets",
		"/api/v1/tickets/5b2f/status":        "/api/v1/tickets/{id}/status",
		"/api/v1/staff/available":            "/api/v1/staff/available",
		"/api/v1/staff/staff-1/availability": "/api/v1/staff/{id}/availability",
		"/api/v1/notifications/abc/read":     "/api/v1/notifications/{id}/read",
		"/api/v1/appointments/a-17":          "/api/v1/appointments/{id}",
		"/healthz":                           "/healthz",
	}
	for in, want := range cases {
		if got := RouteLabel(in); got != want {
			t.Fatalf("RouteLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

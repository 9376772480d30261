package logging

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core, zap.AddCaller()))
	t.Cleanup(InitDefault)
	return logs
}

func TestMiddlewareLogsRequest(t *testing.T) {
	logs := observe(t)

	var gotID string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest("GET", "/api/v1/tree", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotID != "req-1" {
		t.Errorf("GetRequestID = %q, want req-1", gotID)
	}
	if rec.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("response X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d completion entries, want 1", len(entries))
	}
	e := entries[0]
	if !strings.HasSuffix(e.Caller.File, "logging/logging.go") {
		t.Errorf("caller = %s, want the middleware", e.Caller.File)
	}
	fields := e.ContextMap()
	if fields["request_id"] != "req-1" {
		t.Errorf("request_id = %v", fields["request_id"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status = %v", fields["status"])
	}
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	observe(t)

	var gotID string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if gotID == "" || rec.Header().Get("X-Request-ID") != gotID {
		t.Errorf("request id %q, header %q", gotID, rec.Header().Get("X-Request-ID"))
	}
}

func TestHelpersReportCallingSite(t *testing.T) {
	logs := observe(t)

	Warn("from helper")
	Named("component").Info("from named logger")

	for _, e := range logs.All() {
		if !strings.HasSuffix(e.Caller.File, "logging/logging_test.go") {
			t.Errorf("%q caller = %s, want logging_test.go", e.Message, e.Caller.File)
		}
	}
	if logs.Len() != 2 {
		t.Errorf("got %d entries, want 2", logs.Len())
	}
}

func TestLevelHandler(t *testing.T) {
	observe(t)
	orig := Level()
	t.Cleanup(func() { SetLevel(orig) })

	h := LevelHandler()
	level := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Level string `json:"level"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body.Level
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/log-level", strings.NewReader(`{"level":"debug"}`)))
	if rec.Code != http.StatusOK || level(rec) != "debug" {
		t.Fatalf("PUT debug -> %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/log-level", nil))
	if got := level(rec); got != "debug" {
		t.Errorf("GET level = %q, want debug", got)
	}

	tests := []struct {
		method, body string
		want         int
	}{
		{"PUT", `{"level":"loud"}`, http.StatusBadRequest},
		{"PUT", `{`, http.StatusBadRequest},
		{"DELETE", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/log-level", strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.body, rec.Code, tt.want)
		}
	}
	if Level() != "debug" {
		t.Errorf("rejected request changed level to %s", Level())
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerWritesOneLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session", nil))

	if logs.Len() != 1 {
		t.Fatalf("expected one log line, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Fatalf("unexpected status field %v", fields["status"])
	}
	if fields["path"] != "/api/session" || fields["method"] != http.MethodPost {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["bytes"] != int64(2) {
		t.Fatalf("unexpected bytes field %v", fields["bytes"])
	}
}

func TestRequestLoggerDefaultsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Fatalf("expected 200, got %v", got)
	}
}

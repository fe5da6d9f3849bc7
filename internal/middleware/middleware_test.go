package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"whatsdrip/internal/testutil"
)

func TestRecovery_ReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := RequestLogger(log)(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	testutil.AssertStatusCode(t, rec, http.StatusInternalServerError)
	testutil.AssertContains(t, rec.Body.String(), "INTERNAL_ERROR")
	testutil.AssertContains(t, buf.String(), "recovered from panic")
	testutil.AssertContains(t, buf.String(), `"panic":"boom"`)
}

func TestRequestLogger_LogsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	var sawLogger bool
	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	testutil.AssertEqual(t, rec.Header().Get(RequestIDHeader), "req-42")
	if !sawLogger {
		t.Error("Expected a request-scoped logger in the context")
	}

	var entry map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", line, err)
	}
	testutil.AssertEqual(t, entry["level"], "warn")
	testutil.AssertEqual(t, entry["request_id"], "req-42")
	testutil.AssertEqual(t, entry["path"], "/missing")
	testutil.AssertEqual(t, entry["status"], float64(404))
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	handler := RequestLogger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request ID")
	}
}

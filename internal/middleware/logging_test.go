package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newCapturedLogger returns a JSON logger writing into buf.
func newCapturedLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got none")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/recommendations/posts", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := decodeLogLine(t, &buf)

	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/recommendations/posts" {
		t.Errorf("expected path /recommendations/posts, got %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
	if entry["size"] != float64(5) {
		t.Errorf("expected size 5, got %v", entry["size"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("expected INFO level, got %v", entry["level"])
	}
}

func TestLogging_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := decodeLogLine(t, &buf)
	if entry["request_id"] != "req-abc-123" {
		t.Errorf("expected request_id req-abc-123, got %v", entry["request_id"])
	}
}

func TestLogging_IncludesUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetUserID(req.Context(), "user-42"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := decodeLogLine(t, &buf)
	if entry["user_id"] != "user-42" {
		t.Errorf("expected user_id user-42, got %v", entry["user_id"])
	}
}

func TestLogging_ErrorCodeViaResponseContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	// The handler sets the error code after the middleware captured the
	// request context, so it must flow back through the response writer.
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetErrorCode(r.Context(), "validation_failed")
		UpdateResponseContext(w, ctx)
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := decodeLogLine(t, &buf)
	if entry["error_code"] != "validation_failed" {
		t.Errorf("expected error_code validation_failed, got %v", entry["error_code"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level for 4xx, got %v", entry["level"])
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success is info", http.StatusOK, "INFO"},
		{"client error is warn", http.StatusNotFound, "WARN"},
		{"server error is error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newCapturedLogger(&buf)

			handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			entry := decodeLogLine(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("expected %s level, got %v", tt.wantLevel, entry["level"])
			}
		})
	}
}

func TestResponseWriter_DuplicateWriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // ignored

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("expected first status to win, got %d", rw.statusCode)
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger("production") == nil {
		t.Error("expected non-nil production logger")
	}
	if NewLogger("development") == nil {
		t.Error("expected non-nil development logger")
	}
}

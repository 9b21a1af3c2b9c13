package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wrenlabs/tidepool/internal/middleware"
	"github.com/wrenlabs/tidepool/internal/tracing"
)

// TestEndToEndTracing drives a request through the tracing middleware
// and a handler that opens ranking and database spans, verifying span
// creation and trace propagation.
func TestEndToEndTracing(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ctx, endRank := tracing.StartSpan(ctx, "rank_posts")
		tracing.SetAttributes(ctx,
			attribute.String("viewer_id", "viewer-1"),
			attribute.Int("page", 1),
		)

		ctx, endDBQuery := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
		endDBQuery(nil)

		tracing.AddEvent(ctx, "candidates_scored",
			attribute.Int("count", 42),
		)

		endRank(nil)

		w.WriteHeader(http.StatusOK)
	})

	tracedHandler := middleware.Tracing("tidepool-test")(handler)

	req := httptest.NewRequest(http.MethodGet, "/recommendations/posts", nil)
	rr := httptest.NewRecorder()
	tracedHandler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	spans := spanRecorder.Ended()
	if len(spans) != 3 {
		t.Errorf("expected 3 spans, got %d", len(spans))
		for i, span := range spans {
			t.Logf("  span %d: %s", i, span.Name())
		}
	}

	spanNames := make(map[string]bool)
	for _, span := range spans {
		spanNames[span.Name()] = true
	}
	for _, name := range []string{"GET /recommendations/posts", "rank_posts", "query posts"} {
		if !spanNames[name] {
			t.Errorf("missing required span: %s", name)
		}
	}

	// All spans belong to the same trace.
	if len(spans) > 0 {
		traceID := spans[0].SpanContext().TraceID()
		for i, span := range spans {
			if span.SpanContext().TraceID() != traceID {
				t.Errorf("span %d has different trace ID: expected %s, got %s",
					i, traceID, span.SpanContext().TraceID())
			}
		}
	}

	for _, span := range spans {
		if span.Name() != "query posts" {
			continue
		}
		found := map[string]bool{}
		for _, attr := range span.Attributes() {
			switch attr.Key {
			case "db.system":
				found["system"] = true
				if attr.Value.AsString() != "postgresql" {
					t.Errorf("expected db.system=postgresql, got %s", attr.Value.AsString())
				}
			case "db.operation":
				found["operation"] = true
			case "db.sql.table":
				found["table"] = true
				if attr.Value.AsString() != "posts" {
					t.Errorf("expected db.sql.table=posts, got %s", attr.Value.AsString())
				}
			}
		}
		for _, key := range []string{"system", "operation", "table"} {
			if !found[key] {
				t.Errorf("DB span missing db %s attribute", key)
			}
		}
	}
}

// TestTracingDisabled verifies span helpers work as no-ops when tracing
// is off.
func TestTracingDisabled(t *testing.T) {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName: "tidepool-test",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("failed to create disabled provider: %v", err)
	}

	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}

	ctx := context.Background()
	ctx, endSpan := tracing.StartSpan(ctx, "rank_users")
	tracing.SetAttributes(ctx, attribute.String("viewer_id", "viewer-1"))
	tracing.AddEvent(ctx, "candidates_scored")
	endSpan(nil)
}

// TestTraceContextPropagation verifies the trace ID seen by a handler
// matches the span recorded for its request.
func TestTraceContextPropagation(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	var capturedTraceID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = middleware.GetTraceID(r)
		w.WriteHeader(http.StatusOK)
	})

	tracedHandler := middleware.Tracing("tidepool-test")(handler)

	req := httptest.NewRequest(http.MethodGet, "/recommendations/users", nil)
	rr := httptest.NewRecorder()
	tracedHandler.ServeHTTP(rr, req)

	if capturedTraceID == "" {
		t.Error("expected non-empty trace ID")
	}

	spans := spanRecorder.Ended()
	if len(spans) > 0 {
		spanTraceID := spans[0].SpanContext().TraceID().String()
		if capturedTraceID != spanTraceID {
			t.Errorf("trace ID mismatch: handler captured %s, span has %s",
				capturedTraceID, spanTraceID)
		}
	}
}

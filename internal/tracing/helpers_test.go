package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs a recording tracer provider for the test and
// returns the recorder holding every ended span.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

func singleSpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	return spans[0]
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (string, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query posts", "posts", DBOperationQuery, "query posts"},
		{"insert users", "users", DBOperationInsert, "insert users"},
		{"update follows", "follows", DBOperationUpdate, "update follows"},
		{"delete likes", "likes", DBOperationDelete, "delete likes"},
		{"exec migrations", "migrations", DBOperationExec, "exec migrations"},
		{"query without table", "", DBOperationQuery, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			span := singleSpan(t, recorder)
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}

			if got, _ := attrValue(span, "db.system"); got != "postgresql" {
				t.Errorf("db.system = %q, want postgresql", got)
			}
			if got, _ := attrValue(span, "db.operation"); got != string(tt.operation) {
				t.Errorf("db.operation = %q, want %q", got, tt.operation)
			}

			tableAttr, hasTable := attrValue(span, "db.sql.table")
			if tt.table == "" && hasTable {
				t.Error("unexpected db.sql.table attribute on table-less span")
			}
			if tt.table != "" && tableAttr != tt.table {
				t.Errorf("db.sql.table = %q, want %q", tableAttr, tt.table)
			}
		})
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	recorder := recordSpans(t)
	dbErr := errors.New("database error")

	_, end := StartDBSpan(context.Background(), "posts", DBOperationQuery)
	end(dbErr)

	span := singleSpan(t, recorder)
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if span.Status().Description != dbErr.Error() {
		t.Errorf("status description = %q, want %q", span.Status().Description, dbErr.Error())
	}
}

func TestStartSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, end := StartSpan(context.Background(), "rank_posts")
	end(nil)

	span := singleSpan(t, recorder)
	if span.Name() != "rank_posts" {
		t.Errorf("span name = %q, want rank_posts", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Error("successful span should not carry error status")
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := recordSpans(t)

	_, end := StartSpan(context.Background(), "rank_posts")
	end(errors.New("scoring error"))

	if singleSpan(t, recorder).Status().Code != codes.Error {
		t.Error("expected error status")
	}
}

func TestAddEvent(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "rank_posts")
	AddEvent(ctx, "candidates_scored",
		attribute.Int("candidates", 60),
		attribute.Int("page", 1),
	)
	span.End()

	events := singleSpan(t, recorder).Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "candidates_scored" {
		t.Errorf("event name = %q, want candidates_scored", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Errorf("event attributes = %d, want 2", len(events[0].Attributes))
	}
}

func TestSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "rank_posts")
	SetAttributes(ctx,
		attribute.String("viewer.id", "user-123"),
		attribute.String("endpoint", "/recommendations/posts"),
	)
	span.End()

	ended := singleSpan(t, recorder)
	if got, ok := attrValue(ended, "viewer.id"); !ok || got != "user-123" {
		t.Errorf("viewer.id = %q (present=%v), want user-123", got, ok)
	}
	if got, ok := attrValue(ended, "endpoint"); !ok || got != "/recommendations/posts" {
		t.Errorf("endpoint = %q (present=%v), want /recommendations/posts", got, ok)
	}
}

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "seat-hold-booking"

// Tracer はアプリケーション層のスパンを作成する
// TracerProvider が未設定の場合は no-op になる
type Tracer struct {
	t trace.Tracer
}

// New は名前付きのTracerを作成する
func New(name string) *Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return &Tracer{t: otel.Tracer(name)}
}

// Start はスパンを開始する
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End はエラー有無に応じてステータスを設定してスパンを終了する
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

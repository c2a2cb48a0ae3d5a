package storage

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Traced wraps a Store and records a span per operation.
type Traced struct {
	Store
	tracer trace.Tracer
}

func NewTraced(s Store, tracer trace.Tracer) *Traced {
	return &Traced{Store: s, tracer: tracer}
}

func (t *Traced) start(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.path", path)),
	)
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *Traced) Get(ctx context.Context, path string) (*Document, error) {
	ctx, span := t.start(ctx, "get", path)
	doc, err := t.Store.Get(ctx, path)
	if doc != nil {
		span.SetAttributes(attribute.Int64("store.version", doc.Version))
	}
	finish(span, err)
	return doc, err
}

func (t *Traced) Set(ctx context.Context, path string, value []byte) error {
	ctx, span := t.start(ctx, "set", path)
	err := t.Store.Set(ctx, path, value)
	finish(span, err)
	return err
}

func (t *Traced) CompareAndSet(ctx context.Context, path string, version int64, value []byte) error {
	ctx, span := t.start(ctx, "compare_and_set", path)
	span.SetAttributes(attribute.Int64("store.version", version))
	err := t.Store.CompareAndSet(ctx, path, version, value)
	finish(span, err)
	return err
}

func (t *Traced) Children(ctx context.Context, parent string) ([]Document, error) {
	ctx, span := t.start(ctx, "children", parent)
	docs, err := t.Store.Children(ctx, parent)
	span.SetAttributes(attribute.Int("store.children", len(docs)))
	finish(span, err)
	return docs, err
}

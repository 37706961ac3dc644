package dbsession

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/TechXTT/dbsession"

type instruments struct {
	tracer     trace.Tracer
	commits    metric.Int64Counter
	statements metric.Int64Counter
	rows       metric.Int64Counter
}

func newInstruments(o *options) (*instruments, error) {
	meter := o.meterProvider.Meter(instrumentationName)

	commits, err := meter.Int64Counter("dbsession.commits",
		metric.WithDescription("Transactions committed by sessions."))
	if err != nil {
		return nil, err
	}
	statements, err := meter.Int64Counter("dbsession.statements",
		metric.WithDescription("Statements executed, batch items included."))
	if err != nil {
		return nil, err
	}
	rows, err := meter.Int64Counter("dbsession.rows",
		metric.WithDescription("Rows affected or materialized."))
	if err != nil {
		return nil, err
	}

	return &instruments{
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		commits:    commits,
		statements: statements,
		rows:       rows,
	}, nil
}

func (i *instruments) start(ctx context.Context, op, query string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("db.operation.name", op)}
	if query != "" {
		attrs = append(attrs, attribute.String("db.query.text", query))
	}
	return i.tracer.Start(ctx, "dbsession."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// end records err on span, if any, and ends it.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

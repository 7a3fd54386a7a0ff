package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

// QueryTracer wraps repository calls in client spans and flags slow queries.
// A nil *QueryTracer still traces but never logs.
type QueryTracer struct {
	system        string
	slowThreshold time.Duration
	logger        *slog.Logger
}

// NewQueryTracer returns a tracer for the given db.system. A zero threshold
// disables slow query logging.
func NewQueryTracer(system string, slowThreshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{system: system, slowThreshold: slowThreshold, logger: logger}
}

// Trace starts a span for operation. Call the returned function with the
// operation's error when it completes:
//
//	ctx, end := qt.Trace(ctx, "orders.get", getOrderSQL)
//	defer func() { end(err) }()
func (q *QueryTracer) Trace(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	system := "postgresql"
	if q != nil && q.system != "" {
		system = q.system
	}

	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if q == nil || q.slowThreshold <= 0 || q.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= q.slowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			q.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes feed metrics, so keep them low cardinality: operation
// names, status values, backend types and component names. Run IDs, file
// names and error messages belong in logs and span status, not attributes.
// Group labels are configured up front and are safe as attributes.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation wraps fn in a span tagged with the component and outcome.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(ctx, operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentBackendOperation instruments content delivery backend calls.
func (t *Telemetry) InstrumentBackendOperation(ctx context.Context, backend, operation, group string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "backend_"+operation, "delivery_backend", func(ctx context.Context) error {
		if t.tracer == nil {
			return fn(ctx)
		}

		ctx, span := t.tracer.Start(ctx, "backend_"+operation)
		defer span.End()

		span.SetAttributes(
			attribute.String("backend.type", backend),
			attribute.String("backend.operation", operation),
			attribute.String("patch.group", group),
		)

		return fn(ctx)
	})

	t.RecordBackendOperation(ctx, backend, operation, statusOf(err))

	return err
}

// InstrumentProbe instruments the size probing phase of a run.
func (t *Telemetry) InstrumentProbe(ctx context.Context, groups int, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	return t.InstrumentOperation(ctx, "probe", "orchestrator", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "probe_groups")
		defer span.End()

		span.SetAttributes(attribute.Int("patch.groups", groups))

		return fn(ctx)
	})
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

package orchestration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// goSafe runs fn on its own goroutine. A panic is logged instead of taking
// the process down.
func goSafe(name string, fn func()) {
	go func() {
		if err := panicSafe(name, fn); err != nil {
			logger.Error(err.Error())
		}
	}()
}

func panicSafe(name string, fn func()) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s panicked: %v", name, recovered)
		}
	}()
	fn()
	return nil
}

func recordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package obs

import (
	"context"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TaskTracing wraps asynq handlers with a span per processed task.
func TaskTracing(next asynq.Handler) asynq.Handler {
	tracer := otel.Tracer("worker.asynq")
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		ctx, span := tracer.Start(ctx, "task "+task.Type())
		defer span.End()
		span.SetAttributes(
			attribute.String("messaging.system", "asynq"),
			attribute.String("messaging.operation", task.Type()),
			attribute.Int("messaging.payload_size", len(task.Payload())),
		)
		err := next.ProcessTask(ctx, task)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

package stage

import (
	"context"

	"clipdub/internal/queue"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	Prepare(context.Context, *queue.Task) error
	Execute(context.Context, *queue.Task) error
	HealthCheck(context.Context) Health
}

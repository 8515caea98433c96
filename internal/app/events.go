package app

import (
	"context"
	"errors"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
)

// publishEvent is best effort: the mutation is already persisted.
func publishEvent(ctx context.Context, publisher EventPublisher, log logger.Logger, event model.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn("events", "publish event failed", map[string]interface{}{"type": string(event.Type), "error": err})
	}
}

// logFailure logs storage faults as errors and expected lookups as debug.
func logFailure(log logger.Logger, module, message string, err error, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["error"] = err
	switch {
	case errors.Is(err, model.ErrStorage):
		log.Error(module, message, details)
	case errors.Is(err, model.ErrNotFound), errors.Is(err, ErrInvalidInput):
		log.Debug(module, message, details)
	default:
		log.Warn(module, message, details)
	}
}

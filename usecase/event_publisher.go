package usecase

import (
	"context"
	"errors"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"
)

type eventFanout struct {
	publishers []repository.IEventPublisher
}

// NewEventFanout delivers every event to all non-nil publishers; one failing sink does not stop the others.
func NewEventFanout(publishers ...repository.IEventPublisher) repository.IEventPublisher {
	f := &eventFanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

func (f *eventFanout) PublishOperationEvent(ctx context.Context, evt *model.OperationEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishOperationEvent(ctx, evt); err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"user_id":      evt.UserID,
				"operation_id": evt.OperationID,
				"error":        err,
			}).Warn("Failed to publish operation event")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

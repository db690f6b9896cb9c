package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IEventPublisher delivers operation events to downstream consumers (notifications, UI)
type IEventPublisher interface {
	PublishOperationEvent(ctx context.Context, evt *model.OperationEvent) error
}

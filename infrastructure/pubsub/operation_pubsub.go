package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// OperationPublisher publishes operation events to a Pub/Sub topic consumed by the notification service.
type OperationPublisher struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewOperationPublisher(client *pubsub.Client, topicName string) *OperationPublisher {
	return &OperationPublisher{client: client, topicName: topicName}
}

// ensureTopic creates the topic on first use if it doesn't exist. Only a resolved topic is
// kept; a failed lookup is tried again on the next publish.
func (p *OperationPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
		topic, err = p.client.CreateTopic(ctx, p.topicName)
		if err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

func (p *OperationPublisher) PublishOperationEvent(ctx context.Context, evt *model.OperationEvent) error {
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":     evt.Type,
			"user_id":  evt.UserID,
			"platform": string(evt.Platform),
			"action":   string(evt.Action),
			"status":   evt.Status,
		},
	}
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"server_id":    serverID,
		"operation_id": evt.OperationID,
		"user_id":      evt.UserID,
	}).Info("Operation event published")
	return nil
}

// Stop flushes pending messages.
func (p *OperationPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}

package servicebus

import (
	"context"
	"encoding/json"
	"fmt"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// messageSender is the subset of *azservicebus.Sender the publisher needs.
type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// NewServiceBusClient authenticates against the namespace with the default Azure credential chain.
func NewServiceBusClient(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// OperationPublisher sends operation events to a Service Bus queue.
type OperationPublisher struct {
	sender messageSender
	queue  string
}

func NewOperationPublisher(client *azservicebus.Client, queue string) (*OperationPublisher, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &OperationPublisher{sender: sender, queue: queue}, nil
}

func (p *OperationPublisher) PublishOperationEvent(ctx context.Context, evt *model.OperationEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	contentType := "application/json"
	subject := evt.Type
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"user_id":  evt.UserID,
			"platform": string(evt.Platform),
			"action":   string(evt.Action),
		},
	}
	if evt.OperationID != "" {
		// Service Bus duplicate detection keys on MessageID
		id := evt.OperationID + ":" + evt.Type
		msg.MessageID = &id
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

func (p *OperationPublisher) Close(ctx context.Context) {
	if err := p.sender.Close(ctx); err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while closing sender.")
	}
}

package service

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"peer-rental-core/internal/logger"
)

type firebasePushSender struct {
	client *messaging.Client
}

// NewPushSender connects to Firebase Cloud Messaging. Devices subscribe to
// the topic derived from the user's email.
func NewPushSender(ctx context.Context, credentialsFile string) (PushSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return &firebasePushSender{client: client}, nil
}

// PushTopic is the FCM topic a user's devices subscribe to.
func PushTopic(email string) string {
	return "user-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

func (s *firebasePushSender) Push(ctx context.Context, email, title, body string, data map[string]string) error {
	topic := PushTopic(email)
	logger.ExternalServiceCall("firebase", "send", "topic", topic)
	id, err := s.client.Send(ctx, &messaging.Message{
		Topic: topic,
		Data:  data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	logger.ExternalServiceResult("firebase", "send", err, "topic", topic, "messageID", id)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	return nil
}

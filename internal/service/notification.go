package service

import (
	"context"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type notificationService struct {
	noteRepo repository.NotificationRepository
}

func NewNotificationService(noteRepo repository.NotificationRepository) NotificationService {
	return &notificationService{noteRepo: noteRepo}
}

func (s *notificationService) GetNotifications(ctx context.Context, email string, page, pageSize int32) ([]domain.Notification, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.noteRepo.List(ctx, domain.NormalizeEmail(email), pageSize, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, email string, notificationID int32) error {
	err := s.noteRepo.MarkAsRead(ctx, notificationID, domain.NormalizeEmail(email))
	if err != nil {
		return lookupError("mark_as_read", err, "notification %d", notificationID)
	}
	return nil
}

// fanoutNotifier stores an inbox row per recipient and then pushes the event
// out by email and mobile push. Every failure is logged and swallowed so the
// transition that emitted the event stands.
type fanoutNotifier struct {
	noteRepo repository.NotificationRepository
	email    EmailSender
	push     PushSender
}

func NewNotifier(noteRepo repository.NotificationRepository, email EmailSender, push PushSender) Notifier {
	return &fanoutNotifier{noteRepo: noteRepo, email: email, push: push}
}

func (n *fanoutNotifier) Notify(ctx context.Context, ev domain.NotificationEvent) {
	attrs := make(map[string]string, len(ev.Attributes)+1)
	for k, v := range ev.Attributes {
		attrs[k] = v
	}
	attrs["type"] = string(ev.Type)

	seen := make(map[string]bool, len(ev.Recipients))
	for _, to := range ev.Recipients {
		to = domain.NormalizeEmail(to)
		if to == "" || seen[to] {
			continue
		}
		seen[to] = true

		note := &domain.Notification{
			UserEmail:  to,
			Title:      ev.Title,
			Message:    ev.Message,
			Attributes: attrs,
		}
		if err := n.noteRepo.Create(ctx, note); err != nil {
			logger.Error("Failed to store notification", "type", ev.Type, "recipient", to, "error", err)
		}
		if n.email != nil {
			if err := n.email.Send(ctx, to, ev.Title, ev.Message); err != nil {
				logger.Error("Failed to email notification", "type", ev.Type, "recipient", to, "error", err)
			}
		}
		if n.push != nil {
			if err := n.push.Push(ctx, to, ev.Title, ev.Message, attrs); err != nil {
				logger.Error("Failed to push notification", "type", ev.Type, "recipient", to, "error", err)
			}
		}
	}
}

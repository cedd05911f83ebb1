package service

import (
	"context"
	"fmt"

	"github.com/shaharia-lab/claudeflow/internal/storage"
)

// NotificationService exposes the notification delivery log to the HTTP API.
type NotificationService struct {
	store storage.NotificationStore
}

// NewNotificationService creates a NotificationService over the given store.
func NewNotificationService(store storage.NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// ListLog returns recent delivery log entries, newest first.
func (s *NotificationService) ListLog(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	entries, err := s.store.ListNotifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notification log: %w", err)
	}
	return entries, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
)

const (
	msgNotificationNotFound = "notification not found"
	msgNotRecipient         = "notification belongs to another user"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n types.Notification) (types.Notification, error)
	GetByID(ctx context.Context, id int) (types.Notification, error)
	ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error)
	CountUnread(ctx context.Context, userID int) (int, error)
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context, userID int) (int64, error)
	Delete(ctx context.Context, id int) error
	DeleteRead(ctx context.Context, userID int) (int64, error)
}

// NotificationService gives recipients access to their notifications.
type NotificationService struct {
	repo NotificationRepository
}

func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) ListForUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead flags one notification as read on behalf of its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, id, callerID int) (Result[bool], error) {
	res, err := s.authorize(ctx, id, callerID)
	if err != nil || !res.OK() {
		return res, err
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail[bool](KindNotFound, msgNotificationNotFound), nil
		}
		return Result[bool]{}, fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return succeed(true), nil
}

// MarkAllRead flags every unread notification of the user and returns the count changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, id, callerID int) (Result[bool], error) {
	res, err := s.authorize(ctx, id, callerID)
	if err != nil || !res.OK() {
		return res, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail[bool](KindNotFound, msgNotificationNotFound), nil
		}
		return Result[bool]{}, fmt.Errorf("delete notification %d: %w", id, err)
	}
	return succeed(true), nil
}

// DeleteRead clears the user's read notifications.
func (s *NotificationService) DeleteRead(ctx context.Context, userID int) (int64, error) {
	return s.repo.DeleteRead(ctx, userID)
}

func (s *NotificationService) authorize(ctx context.Context, id, callerID int) (Result[bool], error) {
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fail[bool](KindNotFound, msgNotificationNotFound), nil
	}
	if err != nil {
		return Result[bool]{}, fmt.Errorf("load notification %d: %w", id, err)
	}
	if n.UserID != callerID {
		return fail[bool](KindForbidden, msgNotRecipient), nil
	}
	return succeed(true), nil
}

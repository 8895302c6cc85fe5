package services

import (
	"context"
	"testing"
	"time"

	"github.com/emlakhub/apiserver/types"
)

func seedNotifications(t *testing.T, repo *fakeNotificationRepo, userID int, n int) []types.Notification {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]types.Notification, 0, n)
	for i := 0; i < n; i++ {
		created, err := repo.Create(context.Background(), types.Notification{
			UserID:    userID,
			Title:     "title",
			Message:   "message",
			Type:      types.NotificationInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed notification: %v", err)
		}
		out = append(out, created)
	}
	return out
}

func TestNotificationListNewestFirst(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo)
	seeded := seedNotifications(t, repo, ownerID, 3)
	seedNotifications(t, repo, strangerID, 1)

	if res, err := svc.MarkRead(context.Background(), seeded[2].ID, ownerID); err != nil || !res.OK() {
		t.Fatalf("mark read: %v %+v", err, res)
	}

	all, err := svc.ListForUser(context.Background(), ownerID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != seeded[2].ID || all[2].ID != seeded[0].ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	unread, err := svc.ListForUser(context.Background(), ownerID, true)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(unread))
	}
	count, _ := svc.UnreadCount(context.Background(), ownerID)
	if count != 2 {
		t.Fatalf("expected unread count 2, got %d", count)
	}
}

func TestNotificationMarkReadAuthorization(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo)
	n := seedNotifications(t, repo, ownerID, 1)[0]

	if res, err := svc.MarkRead(context.Background(), 999, ownerID); err != nil || res.Kind != KindNotFound {
		t.Fatalf("expected not found, got %v %+v", err, res)
	}
	if res, err := svc.MarkRead(context.Background(), n.ID, strangerID); err != nil || res.Kind != KindForbidden {
		t.Fatalf("expected forbidden, got %v %+v", err, res)
	}
	if stored, _ := repo.GetByID(context.Background(), n.ID); stored.IsRead {
		t.Fatalf("foreign caller flipped the read flag")
	}
}

func TestNotificationMarkAllRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo)
	seedNotifications(t, repo, ownerID, 3)
	other := seedNotifications(t, repo, strangerID, 1)[0]

	changed, err := svc.MarkAllRead(context.Background(), ownerID)
	if err != nil || changed != 3 {
		t.Fatalf("expected 3 changed, got %d %v", changed, err)
	}
	again, _ := svc.MarkAllRead(context.Background(), ownerID)
	if again != 0 {
		t.Fatalf("second mark-all should change nothing, got %d", again)
	}
	if stored, _ := repo.GetByID(context.Background(), other.ID); stored.IsRead {
		t.Fatalf("another user's notification was marked read")
	}
}

func TestNotificationDelete(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo)
	n := seedNotifications(t, repo, ownerID, 1)[0]

	if res, _ := svc.Delete(context.Background(), n.ID, strangerID); res.Kind != KindForbidden {
		t.Fatalf("expected forbidden, got %s", res.Kind)
	}
	if res, err := svc.Delete(context.Background(), n.ID, ownerID); err != nil || !res.OK() {
		t.Fatalf("delete: %v %+v", err, res)
	}
	if res, _ := svc.Delete(context.Background(), n.ID, ownerID); res.Kind != KindNotFound {
		t.Fatalf("expected not found after delete, got %s", res.Kind)
	}
}

func TestNotificationDeleteRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo)
	seeded := seedNotifications(t, repo, ownerID, 2)
	if _, err := svc.MarkRead(context.Background(), seeded[0].ID, ownerID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	removed, err := svc.DeleteRead(context.Background(), ownerID)
	if err != nil || removed != 1 {
		t.Fatalf("expected one removal, got %d %v", removed, err)
	}
	left, _ := svc.ListForUser(context.Background(), ownerID, false)
	if len(left) != 1 || left[0].ID != seeded[1].ID {
		t.Fatalf("unexpected remaining notifications %+v", left)
	}
}

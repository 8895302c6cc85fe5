package types

import "time"

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Notification is a message delivered to a single user.
type Notification struct {
	// ID is the unique identifier of the notification.
	ID int `json:"id" db:"id"`

	// UserID is the recipient.
	UserID int `json:"user_id" db:"user_id"`

	Title   string           `json:"title" db:"title"`
	Message string           `json:"message" db:"message"`
	Type    NotificationType `json:"type" db:"type"`

	// IsRead is flipped by the recipient.
	IsRead bool `json:"is_read" db:"is_read"`

	// ListingID references the listing the notification is about, if any.
	ListingID *int `json:"listing_id,omitempty" db:"listing_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

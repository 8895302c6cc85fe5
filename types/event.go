package types

import "time"

// ListingEventKind names a committed moderation transition.
type ListingEventKind string

const (
	ListingDeactivated ListingEventKind = "listing.deactivated"
	ListingActivated   ListingEventKind = "listing.activated"
)

// ListingEvent is published after a moderation transition commits.
// Notification is the row written for the owner, nil for unowned listings.
type ListingEvent struct {
	Kind         ListingEventKind `json:"kind"`
	ListingID    int              `json:"listing_id"`
	OwnerID      *int             `json:"owner_id,omitempty"`
	ActorID      int              `json:"actor_id"`
	Reason       *string          `json:"reason,omitempty"`
	Notification *Notification    `json:"notification,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

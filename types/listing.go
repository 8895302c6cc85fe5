package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultListingType is applied when a new listing does not name a type.
const DefaultListingType = "Satılık"

// DefaultDeactivationReason is recorded when an admin deactivates a listing without a reason.
const DefaultDeactivationReason = "Deactivated by admin."

// Listing represents a property advertisement.
// It holds the content written by the owner and the moderation state
// written by administrators.
type Listing struct {
	// ID is the unique identifier of the listing.
	ID int `json:"id" db:"id"`

	// OwnerID references the user who created the listing.
	// It is nil once the owning account has been deleted.
	OwnerID *int `json:"owner_id" db:"owner_id"`

	// OwnerName and OwnerPhone are read-only contact details joined from the owner's account.
	OwnerName  *string `json:"owner_name,omitempty" db:"owner_name"`
	OwnerPhone *string `json:"owner_phone,omitempty" db:"owner_phone"`

	// Title is the headline of the advertisement.
	Title string `json:"title" db:"title"`

	// Description is the free-form body of the advertisement.
	Description string `json:"description" db:"description"`

	// Price is the asking price.
	Price decimal.Decimal `json:"price" db:"price"`

	// Type is a free-form tag such as "Satılık" or "Kiralık".
	Type string `json:"type" db:"type"`

	// City and District locate the property.
	City     string  `json:"city" db:"city"`
	District *string `json:"district,omitempty" db:"district"`

	// RoomCount is the room layout, e.g. "3+1".
	RoomCount string `json:"room_count" db:"room_count"`

	// SquareMeters is the usable area of the property.
	SquareMeters int `json:"square_meters" db:"square_meters"`

	// ImageURL is the cover image of the listing.
	ImageURL *string `json:"image_url,omitempty" db:"image_url"`

	// IsActive is true while the listing is publicly visible.
	IsActive bool `json:"is_active" db:"is_active"`

	// DeactivationReason, DeactivatedAt and DeactivatedByUserID are set together
	// when an admin deactivates the listing and cleared together on activation.
	DeactivationReason  *string    `json:"deactivation_reason,omitempty" db:"deactivation_reason"`
	DeactivatedAt       *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	DeactivatedByUserID *int       `json:"deactivated_by_user_id,omitempty" db:"deactivated_by_user_id"`

	// CreatedAt is the timestamp when the listing was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the listing.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnedBy reports whether userID is the listing's owner.
// An unowned listing has no owner and a nil caller owns nothing.
func (l Listing) OwnedBy(userID *int) bool {
	return l.OwnerID != nil && userID != nil && *l.OwnerID == *userID
}

// Deactivate moves the listing to the inactive state.
func (l *Listing) Deactivate(reason string, adminID int, at time.Time) {
	l.IsActive = false
	l.DeactivationReason = &reason
	l.DeactivatedAt = &at
	l.DeactivatedByUserID = &adminID
}

// Activate moves the listing back to the active state and clears the moderation fields.
func (l *Listing) Activate() {
	l.IsActive = true
	l.DeactivationReason = nil
	l.DeactivatedAt = nil
	l.DeactivatedByUserID = nil
}

// ListingInput carries the owner-editable content of a listing.
// Nil string fields mean "not provided".
type ListingInput struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	City         *string         `json:"city"`
	District     *string         `json:"district"`
	Type         *string         `json:"type"`
	ImageURL     *string         `json:"image_url"`
	Price        decimal.Decimal `json:"price"`
	RoomCount    string          `json:"room_count"`
	SquareMeters int             `json:"square_meters"`
}

// ListingFilter narrows a listing query.
type ListingFilter struct {
	Type     *string
	City     *string
	District *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	OwnerID  *int

	// IncludeInactive asks for inactive listings too. It is only honored for admins.
	IncludeInactive bool

	Offset int
	Limit  int
}

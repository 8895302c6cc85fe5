package types

import "time"

// Favorite is a user's bookmark of a listing.
// A (UserID, ListingID) pair is stored at most once.
type Favorite struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	ListingID int       `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FavoriteListing is a favorite joined with the current state of its listing.
type FavoriteListing struct {
	FavoriteID  int       `json:"favorite_id" db:"favorite_id"`
	FavoritedAt time.Time `json:"favorited_at" db:"favorited_at"`
	Listing     Listing   `json:"listing" db:"listing"`
}

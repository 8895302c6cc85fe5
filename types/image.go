package types

import "time"

// ListingImage is a photo attached to a listing.
// The bytes live in object storage under ObjectKey.
type ListingImage struct {
	// ID is the unique identifier of the image.
	ID int `json:"id" db:"id"`

	// ListingID references the listing the photo belongs to.
	ListingID int `json:"listing_id" db:"listing_id"`

	// ObjectKey is the key of the photo in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	// FileName is the name the photo was uploaded with.
	FileName string `json:"file_name" db:"file_name"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the photo size in bytes.
	Size int64 `json:"size" db:"size"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

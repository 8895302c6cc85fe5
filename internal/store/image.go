package store

import (
	"context"
	"time"

	"github.com/emlakhub/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const imageColumns = `id, listing_id, object_key, file_name, content_type, size, created_at`

// ImageRepository handles persistence for listing photo metadata.
type ImageRepository struct {
	db *sqlx.DB
}

func NewImageRepository(db *sqlx.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, image types.ListingImage) (types.ListingImage, error) {
	image.CreatedAt = time.Now()

	const query = `
		INSERT INTO listing_images (listing_id, object_key, file_name, content_type, size, created_at)
		VALUES (:listing_id, :object_key, :file_name, :content_type, :size, :created_at)
		RETURNING id`
	if err := namedGet(ctx, conn(ctx, r.db), &image, query, image); err != nil {
		return types.ListingImage{}, mapError(err)
	}
	return image, nil
}

func (r *ImageRepository) Get(ctx context.Context, listingID, imageID int) (types.ListingImage, error) {
	var image types.ListingImage
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &image,
		`SELECT `+imageColumns+` FROM listing_images WHERE id = $1 AND listing_id = $2`, imageID, listingID)
	if err != nil {
		return types.ListingImage{}, mapError(err)
	}
	return image, nil
}

func (r *ImageRepository) ListByListing(ctx context.Context, listingID int) ([]types.ListingImage, error) {
	images := []types.ListingImage{}
	err := sqlx.SelectContext(ctx, conn(ctx, r.db), &images,
		`SELECT `+imageColumns+` FROM listing_images WHERE listing_id = $1 ORDER BY created_at, id`, listingID)
	if err != nil {
		return nil, err
	}
	return images, nil
}

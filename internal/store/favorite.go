package store

import (
	"context"
	"time"

	"github.com/emlakhub/apiserver/types"
	"github.com/jmoiron/sqlx"
)

// FavoriteRepository handles persistence for favorites.
type FavoriteRepository struct {
	db *sqlx.DB
}

func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add inserts the pair and reports whether a new row was written.
// An existing pair is left untouched.
func (r *FavoriteRepository) Add(ctx context.Context, userID, listingID int) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO favorites (user_id, listing_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_id) DO NOTHING`, userID, listingID, time.Now())
	if err != nil {
		return false, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Remove deletes the pair and reports whether it existed.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, listingID int) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByUser returns the user's favorites joined with their listings, newest first.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int) ([]types.FavoriteListing, error) {
	const query = `
		SELECT f.id AS favorite_id, f.created_at AS favorited_at,
			l.id AS "listing.id", l.owner_id AS "listing.owner_id", l.title AS "listing.title",
			l.description AS "listing.description", l.price AS "listing.price", l.type AS "listing.type",
			l.city AS "listing.city", l.district AS "listing.district", l.room_count AS "listing.room_count",
			l.square_meters AS "listing.square_meters", l.image_url AS "listing.image_url",
			l.is_active AS "listing.is_active", l.deactivation_reason AS "listing.deactivation_reason",
			l.deactivated_at AS "listing.deactivated_at", l.deactivated_by_user_id AS "listing.deactivated_by_user_id",
			l.created_at AS "listing.created_at", l.updated_at AS "listing.updated_at",
			NULLIF(TRIM(u.first_name || ' ' || u.last_name), '') AS "listing.owner_name",
			u.phone AS "listing.owner_phone"
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		LEFT JOIN users u ON u.id = l.owner_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC`

	items := []types.FavoriteListing{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &items, query, userID); err != nil {
		return nil, err
	}
	return items, nil
}

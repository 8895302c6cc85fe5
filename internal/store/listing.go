package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const listingSelect = `
	SELECT l.id, l.owner_id, l.title, l.description, l.price, l.type, l.city, l.district,
		l.room_count, l.square_meters, l.image_url, l.is_active, l.deactivation_reason,
		l.deactivated_at, l.deactivated_by_user_id, l.created_at, l.updated_at,
		NULLIF(TRIM(u.first_name || ' ' || u.last_name), '') AS owner_name,
		u.phone AS owner_phone
	FROM listings l
	LEFT JOIN users u ON u.id = l.owner_id`

// ListingRepository handles persistence for listings.
type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, listing types.Listing) (types.Listing, error) {
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	const query = `
		INSERT INTO listings
			(owner_id, title, description, price, type, city, district, room_count, square_meters,
			 image_url, is_active, deactivation_reason, deactivated_at, deactivated_by_user_id,
			 created_at, updated_at)
		VALUES
			(:owner_id, :title, :description, :price, :type, :city, :district, :room_count, :square_meters,
			 :image_url, :is_active, :deactivation_reason, :deactivated_at, :deactivated_by_user_id,
			 :created_at, :updated_at)
		RETURNING id`
	if err := namedGet(ctx, conn(ctx, r.db), &listing, query, listing); err != nil {
		return types.Listing{}, mapError(err)
	}
	return listing, nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id int) (types.Listing, error) {
	var listing types.Listing
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &listing, listingSelect+` WHERE l.id = $1`, id)
	if err != nil {
		return types.Listing{}, mapError(err)
	}
	return listing, nil
}

// GetForUpdate reads the listing and locks its row until the surrounding
// transaction ends. Outside a transaction it behaves like GetByID.
func (r *ListingRepository) GetForUpdate(ctx context.Context, id int) (types.Listing, error) {
	var listing types.Listing
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &listing, listingSelect+` WHERE l.id = $1 FOR UPDATE OF l`, id)
	if err != nil {
		return types.Listing{}, mapError(err)
	}
	return listing, nil
}

// Update writes the owner-editable content fields.
func (r *ListingRepository) Update(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.UpdatedAt = time.Now()

	const query = `
		UPDATE listings
		SET title = :title,
			description = :description,
			price = :price,
			type = :type,
			city = :city,
			district = :district,
			room_count = :room_count,
			square_meters = :square_meters,
			image_url = :image_url,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, listing)
	if err != nil {
		return types.Listing{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}

// UpdateModeration writes the active flag and the deactivation fields.
func (r *ListingRepository) UpdateModeration(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.UpdatedAt = time.Now()

	const query = `
		UPDATE listings
		SET is_active = :is_active,
			deactivation_reason = :deactivation_reason,
			deactivated_at = :deactivated_at,
			deactivated_by_user_id = :deactivated_by_user_id,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, listing)
	if err != nil {
		return types.Listing{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}

// SetImageURLIfEmpty sets the cover image unless one is already present.
func (r *ListingRepository) SetImageURLIfEmpty(ctx context.Context, id int, imageURL string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE listings
		SET image_url = $1, updated_at = NOW()
		WHERE id = $2 AND (image_url IS NULL OR image_url = '')`, imageURL, id)
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *ListingRepository) Exists(ctx context.Context, id int) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &count, `SELECT COUNT(1) FROM listings WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("listing exists: %w", err)
	}
	return count > 0, nil
}

// List returns one page of listings matching filter, newest first, and the
// total number of matches. Inactive listings are returned only when
// filter.IncludeInactive is set.
func (r *ListingRepository) List(ctx context.Context, filter types.ListingFilter) ([]types.Listing, int, error) {
	where, args := listingWhere(filter)
	q := conn(ctx, r.db)

	var total int
	countQuery := `SELECT COUNT(1) FROM listings l` + where
	if err := sqlx.GetContext(ctx, q, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	idx := len(args) + 1
	query := listingSelect + where +
		fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC OFFSET $%d LIMIT $%d", idx, idx+1)
	args = append(args, filter.Offset, limit)

	listings := []types.Listing{}
	if err := sqlx.SelectContext(ctx, q, &listings, query, args...); err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func listingWhere(filter types.ListingFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if !filter.IncludeInactive {
		clauses = append(clauses, "l.is_active = TRUE")
	}
	if filter.OwnerID != nil {
		add("l.owner_id = $%d", *filter.OwnerID)
	}
	if filter.Type != nil {
		add("l.type = $%d", *filter.Type)
	}
	if filter.City != nil {
		add("LOWER(l.city) = LOWER($%d)", *filter.City)
	}
	if filter.District != nil {
		add("LOWER(l.district) = LOWER($%d)", *filter.District)
	}
	if filter.MinPrice != nil {
		add("l.price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("l.price <= $%d", *filter.MaxPrice)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
)

const (
	maxPageSize = 100

	msgListingNotFound  = "listing not found"
	msgNotListingOwner  = "only the owner can edit this listing"
	msgInactiveEdit     = "inactive listings cannot be edited"
	msgAlreadyInactive  = "listing is already inactive"
	msgAlreadyActive    = "listing is already active"
	msgDeleteForbidden  = "only the owner or an admin can delete this listing"
	deactivatedTitle    = "Your listing was deactivated"
	deactivatedTemplate = "'%s' was deactivated. Reason: %s"
	activatedTitle      = "Your listing is active again"
	activatedTemplate   = "'%s' is active again."
)

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Create(ctx context.Context, listing types.Listing) (types.Listing, error)
	GetByID(ctx context.Context, id int) (types.Listing, error)
	GetForUpdate(ctx context.Context, id int) (types.Listing, error)
	Update(ctx context.Context, listing types.Listing) (types.Listing, error)
	UpdateModeration(ctx context.Context, listing types.Listing) (types.Listing, error)
	SetImageURLIfEmpty(ctx context.Context, id int, imageURL string) error
	Delete(ctx context.Context, id int) error
	Exists(ctx context.Context, id int) (bool, error)
	List(ctx context.Context, filter types.ListingFilter) ([]types.Listing, int, error)
}

// EventPublisher receives committed moderation transitions.
type EventPublisher interface {
	PublishListingEvent(ctx context.Context, event types.ListingEvent) error
}

// ObjectRemover deletes stored photo objects.
type ObjectRemover interface {
	Delete(ctx context.Context, key string) error
}

// ListingService is the single authority for listing state transitions and
// their authorization rules.
type ListingService struct {
	listings      ListingRepository
	notifications NotificationRepository
	images        ImageRepository
	tx            Transactor
	events        EventPublisher
	objects       ObjectRemover
	logger        *slog.Logger
	now           func() time.Time
}

// ListingOption customises a ListingService.
type ListingOption func(*ListingService)

// WithEventPublisher publishes an event after each committed moderation transition.
func WithEventPublisher(p EventPublisher) ListingOption {
	return func(s *ListingService) { s.events = p }
}

// WithObjectRemover removes photo objects of deleted listings.
func WithObjectRemover(r ObjectRemover) ListingOption {
	return func(s *ListingService) { s.objects = r }
}

func WithLogger(logger *slog.Logger) ListingOption {
	return func(s *ListingService) { s.logger = logger }
}

func WithClock(now func() time.Time) ListingOption {
	return func(s *ListingService) { s.now = now }
}

func NewListingService(
	listings ListingRepository,
	notifications NotificationRepository,
	images ImageRepository,
	tx Transactor,
	opts ...ListingOption,
) *ListingService {
	s := &ListingService{
		listings:      listings,
		notifications: notifications,
		images:        images,
		tx:            tx,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new active listing owned by ownerID.
func (s *ListingService) Create(ctx context.Context, ownerID int, in types.ListingInput) (Result[types.Listing], error) {
	listing := types.Listing{
		OwnerID:      &ownerID,
		Title:        valueOr(in.Title, ""),
		Description:  valueOr(in.Description, ""),
		City:         valueOr(in.City, ""),
		Type:         valueOr(in.Type, types.DefaultListingType),
		District:     in.District,
		Price:        in.Price,
		RoomCount:    in.RoomCount,
		SquareMeters: in.SquareMeters,
		ImageURL:     in.ImageURL,
		IsActive:     true,
	}

	created, err := s.listings.Create(ctx, listing)
	if err != nil {
		return Result[types.Listing]{}, fmt.Errorf("create listing: %w", err)
	}
	return succeed(created), nil
}

// Update overwrites the content of an active listing. Only the owner may
// edit, admins included.
func (s *ListingService) Update(ctx context.Context, id, callerID int, in types.ListingInput) (Result[types.Listing], error) {
	var res Result[types.Listing]
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		listing, err := s.listings.GetForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = fail[types.Listing](KindNotFound, msgListingNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		if !listing.OwnedBy(&callerID) {
			res = fail[types.Listing](KindForbidden, msgNotListingOwner)
			return nil
		}
		if !listing.IsActive {
			res = fail[types.Listing](KindValidation, msgInactiveEdit)
			return nil
		}

		applyContent(&listing, in)
		updated, err := s.listings.Update(ctx, listing)
		if err != nil {
			return err
		}
		res = succeed(updated)
		return nil
	})
	if err != nil {
		return Result[types.Listing]{}, fmt.Errorf("update listing %d: %w", id, err)
	}
	return res, nil
}

// Deactivate hides a listing and notifies its owner. The caller must have
// verified that adminID holds the admin role.
func (s *ListingService) Deactivate(ctx context.Context, id, adminID int, reason *string) (Result[types.Listing], error) {
	text := types.DefaultDeactivationReason
	if reason != nil && strings.TrimSpace(*reason) != "" {
		text = strings.TrimSpace(*reason)
	}

	return s.transition(ctx, id, adminID, func(l *types.Listing) (Result[types.Listing], bool) {
		if !l.IsActive {
			return fail[types.Listing](KindValidation, msgAlreadyInactive), false
		}
		l.Deactivate(text, adminID, s.now())
		return Result[types.Listing]{}, true
	}, func(l types.Listing) transitionOutcome {
		return transitionOutcome{
			kind:      types.ListingDeactivated,
			title:     deactivatedTitle,
			message:   fmt.Sprintf(deactivatedTemplate, l.Title, text),
			notifType: types.NotificationWarning,
			reason:    &text,
		}
	})
}

// Activate makes a listing visible again and notifies its owner. The caller
// must have verified that adminID holds the admin role.
func (s *ListingService) Activate(ctx context.Context, id, adminID int) (Result[types.Listing], error) {
	return s.transition(ctx, id, adminID, func(l *types.Listing) (Result[types.Listing], bool) {
		if l.IsActive {
			return fail[types.Listing](KindValidation, msgAlreadyActive), false
		}
		l.Activate()
		return Result[types.Listing]{}, true
	}, func(l types.Listing) transitionOutcome {
		return transitionOutcome{
			kind:      types.ListingActivated,
			title:     activatedTitle,
			message:   fmt.Sprintf(activatedTemplate, l.Title),
			notifType: types.NotificationSuccess,
		}
	})
}

type transitionOutcome struct {
	kind      types.ListingEventKind
	title     string
	message   string
	notifType types.NotificationType
	reason    *string
}

// transition applies a moderation change and the owner's notification in one
// transaction, then publishes the event once the transaction has committed.
func (s *ListingService) transition(
	ctx context.Context,
	id, adminID int,
	apply func(l *types.Listing) (Result[types.Listing], bool),
	outcome func(l types.Listing) transitionOutcome,
) (Result[types.Listing], error) {
	var (
		res   Result[types.Listing]
		event *types.ListingEvent
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		listing, err := s.listings.GetForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = fail[types.Listing](KindNotFound, msgListingNotFound)
			return nil
		}
		if err != nil {
			return err
		}

		rejected, ok := apply(&listing)
		if !ok {
			res = rejected
			return nil
		}

		updated, err := s.listings.UpdateModeration(ctx, listing)
		if err != nil {
			return err
		}

		out := outcome(updated)
		ev := types.ListingEvent{
			Kind:       out.kind,
			ListingID:  updated.ID,
			OwnerID:    updated.OwnerID,
			ActorID:    adminID,
			Reason:     out.reason,
			OccurredAt: updated.UpdatedAt,
		}
		if updated.OwnerID != nil {
			listingID := updated.ID
			n, err := s.notifications.Create(ctx, types.Notification{
				UserID:    *updated.OwnerID,
				Title:     out.title,
				Message:   out.message,
				Type:      out.notifType,
				ListingID: &listingID,
				CreatedAt: s.now(),
			})
			if err != nil {
				return err
			}
			ev.Notification = &n
		}

		event = &ev
		res = succeed(updated)
		return nil
	})
	if err != nil {
		return Result[types.Listing]{}, fmt.Errorf("moderate listing %d: %w", id, err)
	}

	if event != nil && s.events != nil {
		if err := s.events.PublishListingEvent(ctx, *event); err != nil {
			s.logger.Warn("publish listing event failed",
				"listing_id", event.ListingID, "kind", event.Kind, "error", err)
		}
	}
	return res, nil
}

// Delete removes a listing. Favorites and photo rows go with it; photo
// objects are removed from storage after the delete commits. The listing row
// stays locked while its photos are read, so an upload racing the delete
// either shows up in that read or fails its insert and cleans up its object.
func (s *ListingService) Delete(ctx context.Context, id, callerID int, isAdmin bool) (Result[bool], error) {
	var (
		res    Result[bool]
		images []types.ListingImage
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		listing, err := s.listings.GetForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = fail[bool](KindNotFound, msgListingNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load listing %d: %w", id, err)
		}
		if !isAdmin && !listing.OwnedBy(&callerID) {
			res = fail[bool](KindForbidden, msgDeleteForbidden)
			return nil
		}

		images, err = s.images.ListByListing(ctx, id)
		if err != nil {
			return fmt.Errorf("list images of listing %d: %w", id, err)
		}
		if err := s.listings.Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				res = fail[bool](KindNotFound, msgListingNotFound)
				return nil
			}
			return fmt.Errorf("delete listing %d: %w", id, err)
		}
		res = succeed(true)
		return nil
	})
	if err != nil {
		return Result[bool]{}, err
	}
	if !res.OK() {
		return res, nil
	}

	if s.objects != nil {
		for _, image := range images {
			if err := s.objects.Delete(ctx, image.ObjectKey); err != nil {
				s.logger.Warn("remove listing photo failed",
					"listing_id", id, "key", image.ObjectKey, "error", err)
			}
		}
	}
	return res, nil
}

// Get returns a listing. Inactive listings are reported as missing to
// everyone except their owner and admins.
func (s *ListingService) Get(ctx context.Context, id int, callerID *int, isAdmin bool) (Result[types.Listing], error) {
	listing, err := s.listings.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.Listing](KindNotFound, msgListingNotFound), nil
	}
	if err != nil {
		return Result[types.Listing]{}, fmt.Errorf("load listing %d: %w", id, err)
	}
	if !canView(listing, callerID, isAdmin) {
		return fail[types.Listing](KindNotFound, msgListingNotFound), nil
	}
	return succeed(listing), nil
}

// List returns one page of listings. Inactive listings are included only
// when requested by an admin.
func (s *ListingService) List(ctx context.Context, filter types.ListingFilter, isAdmin bool) ([]types.Listing, int, error) {
	if !isAdmin {
		filter.IncludeInactive = false
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.listings.List(ctx, filter)
}

// ListMine returns the owner's listings, active or not.
func (s *ListingService) ListMine(ctx context.Context, ownerID, offset, limit int) ([]types.Listing, int, error) {
	return s.List(ctx, types.ListingFilter{
		OwnerID:         &ownerID,
		IncludeInactive: true,
		Offset:          offset,
		Limit:           limit,
	}, true)
}

func canView(listing types.Listing, callerID *int, isAdmin bool) bool {
	return listing.IsActive || isAdmin || listing.OwnedBy(callerID)
}

func applyContent(listing *types.Listing, in types.ListingInput) {
	listing.Title = valueOr(in.Title, listing.Title)
	listing.Description = valueOr(in.Description, listing.Description)
	listing.City = valueOr(in.City, listing.City)
	listing.Type = valueOr(in.Type, listing.Type)
	if in.District != nil {
		listing.District = in.District
	}
	if in.ImageURL != nil {
		listing.ImageURL = in.ImageURL
	}
	listing.Price = in.Price
	listing.RoomCount = in.RoomCount
	listing.SquareMeters = in.SquareMeters
}

func valueOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

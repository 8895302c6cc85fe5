package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
)

// FavoriteRepository defines persistence operations for favorites.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, listingID int) (bool, error)
	Remove(ctx context.Context, userID, listingID int) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]types.FavoriteListing, error)
}

// ListingChecker reports whether a listing exists.
type ListingChecker interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// FavoriteService tracks the listings a user bookmarked.
type FavoriteService struct {
	repo     FavoriteRepository
	listings ListingChecker
}

func NewFavoriteService(repo FavoriteRepository, listings ListingChecker) *FavoriteService {
	return &FavoriteService{repo: repo, listings: listings}
}

// Add bookmarks a listing. Adding an existing pair succeeds with Data=false.
func (s *FavoriteService) Add(ctx context.Context, userID, listingID int) (Result[bool], error) {
	exists, err := s.listings.Exists(ctx, listingID)
	if err != nil {
		return Result[bool]{}, err
	}
	if !exists {
		return fail[bool](KindNotFound, msgListingNotFound), nil
	}

	added, err := s.repo.Add(ctx, userID, listingID)
	if err != nil {
		// the listing vanished between the check and the insert
		if errors.Is(err, store.ErrNotFound) {
			return fail[bool](KindNotFound, msgListingNotFound), nil
		}
		return Result[bool]{}, fmt.Errorf("add favorite: %w", err)
	}
	return succeed(added), nil
}

// Remove drops a bookmark. Removing a missing pair is a no-op success.
func (s *FavoriteService) Remove(ctx context.Context, userID, listingID int) (bool, error) {
	removed, err := s.repo.Remove(ctx, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	return removed, nil
}

// List returns the user's favorites with current listing data, newest first.
func (s *FavoriteService) List(ctx context.Context, userID int) ([]types.FavoriteListing, error) {
	return s.repo.ListByUser(ctx, userID)
}

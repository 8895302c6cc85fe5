package handlers

import (
	"context"
	"net/http"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// FavoriteService is the subset of services.FavoriteService used by the HTTP layer.
type FavoriteService interface {
	Add(ctx context.Context, userID, listingID int) (services.Result[bool], error)
	Remove(ctx context.Context, userID, listingID int) (bool, error)
	List(ctx context.Context, userID int) ([]types.FavoriteListing, error)
}

type FavoriteHandler struct {
	favorites FavoriteService
}

func NewFavoriteHandler(favorites FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites}
}

// FavoriteRouter registers favorite routes. Every route requires auth.
func FavoriteRouter(r chi.Router, favorites FavoriteService, auth *Authenticator) {
	handler := NewFavoriteHandler(favorites)

	r.Use(auth.RequireAuth)
	r.Get("/", handler.ListFavorites)
	r.Post("/{listingID}", handler.AddFavorite)
	r.Delete("/{listingID}", handler.RemoveFavorite)
}

func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	items, err := h.favorites.List(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, "failed to list favorites", err)
		return
	}
	if items == nil {
		items = []types.FavoriteListing{}
	}
	writeJSON(w, http.StatusOK, items)
}

// AddFavorite answers 201 when the favorite is new and 200 when it already existed.
func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	listingID, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.favorites.Add(r.Context(), user.ID, listingID)
	if err != nil {
		writeInternal(w, r, "failed to add favorite", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	if !res.Data {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "already in favorites"})
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "added to favorites"})
}

func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	listingID, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.favorites.Remove(r.Context(), user.ID, listingID); err != nil {
		writeInternal(w, r, "failed to remove favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ListingService is the subset of services.ListingService used by the HTTP layer.
type ListingService interface {
	Create(ctx context.Context, ownerID int, in types.ListingInput) (services.Result[types.Listing], error)
	Update(ctx context.Context, id, callerID int, in types.ListingInput) (services.Result[types.Listing], error)
	Deactivate(ctx context.Context, id, adminID int, reason *string) (services.Result[types.Listing], error)
	Activate(ctx context.Context, id, adminID int) (services.Result[types.Listing], error)
	Delete(ctx context.Context, id, callerID int, isAdmin bool) (services.Result[bool], error)
	Get(ctx context.Context, id int, callerID *int, isAdmin bool) (services.Result[types.Listing], error)
	List(ctx context.Context, filter types.ListingFilter, isAdmin bool) ([]types.Listing, int, error)
	ListMine(ctx context.Context, ownerID, offset, limit int) ([]types.Listing, int, error)
}

// ListingHandler provides HTTP handlers for listings.
type ListingHandler struct {
	listings ListingService
}

func NewListingHandler(listings ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// ListingRouter registers listing routes, photo routes included, on the given router.
func ListingRouter(r chi.Router, listings ListingService, photos PhotoService, auth *Authenticator) {
	handler := NewListingHandler(listings)
	photoHandler := NewPhotoHandler(photos)

	r.With(auth.OptionalAuth).Get("/", handler.ListListings)
	r.With(auth.RequireAuth).Post("/", handler.CreateListing)
	r.With(auth.RequireAuth).Get("/my", handler.ListMyListings)
	r.Route("/{listingID}", func(r chi.Router) {
		r.With(auth.OptionalAuth).Get("/", handler.GetListing)
		r.With(auth.RequireAuth).Put("/", handler.UpdateListing)
		r.With(auth.RequireAuth).Delete("/", handler.DeleteListing)
		r.With(auth.RequireAuth, auth.RequireAdmin).Put("/deactivate", handler.DeactivateListing)
		r.With(auth.RequireAuth, auth.RequireAdmin).Put("/activate", handler.ActivateListing)

		r.With(auth.OptionalAuth).Get("/images", photoHandler.ListPhotos)
		r.With(auth.RequireAuth).Post("/images", photoHandler.UploadPhoto)
		r.With(auth.OptionalAuth).Get("/images/{imageID}", photoHandler.GetPhoto)
	})
}

func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseListingFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Offset = offset
	filter.Limit = limit

	_, isAdmin := callerID(r.Context())
	items, total, err := h.listings.List(r.Context(), filter, isAdmin)
	if err != nil {
		writeInternal(w, r, "failed to list listings", err)
		return
	}

	writeJSON(w, http.StatusOK, PageResponse[types.Listing]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *ListingHandler) ListMyListings(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.listings.ListMine(r.Context(), user.ID, offset, limit)
	if err != nil {
		writeInternal(w, r, "failed to list listings", err)
		return
	}

	writeJSON(w, http.StatusOK, PageResponse[types.Listing]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, isAdmin := callerID(r.Context())
	res, err := h.listings.Get(r.Context(), id, caller, isAdmin)
	if err != nil {
		writeInternal(w, r, "failed to fetch listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var in types.ListingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.listings.Create(r.Context(), user.ID, in)
	if err != nil {
		writeInternal(w, r, "failed to create listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, res.Data)
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in types.ListingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.listings.Update(r.Context(), id, user.ID, in)
	if err != nil {
		writeInternal(w, r, "failed to update listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.listings.Delete(r.Context(), id, user.ID, user.IsAdmin())
	if err != nil {
		writeInternal(w, r, "failed to delete listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateRequest is the optional body of a deactivation.
type DeactivateRequest struct {
	Reason *string `json:"reason"`
}

func (h *ListingHandler) DeactivateListing(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req DeactivateRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.listings.Deactivate(r.Context(), id, admin.ID, req.Reason)
	if err != nil {
		writeInternal(w, r, "failed to deactivate listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

func (h *ListingHandler) ActivateListing(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.listings.Activate(r.Context(), id, admin.ID)
	if err != nil {
		writeInternal(w, r, "failed to activate listing", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

func parseListingFilter(r *http.Request) (types.ListingFilter, error) {
	q := r.URL.Query()
	var filter types.ListingFilter

	filter.Type = optionalQuery(q.Get("type"))
	filter.City = optionalQuery(q.Get("city"))
	filter.District = optionalQuery(q.Get("district"))

	var err error
	if filter.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		return types.ListingFilter{}, errors.New("invalid min_price")
	}
	if filter.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		return types.ListingFilter{}, errors.New("invalid max_price")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return types.ListingFilter{}, errors.New("min_price exceeds max_price")
	}

	if filter.IncludeInactive, err = parseBoolQuery(r, "includeInactive"); err != nil {
		return types.ListingFilter{}, err
	}
	return filter, nil
}

func optionalQuery(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

func parsePrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

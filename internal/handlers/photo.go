package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
)

const (
	maxPhotoBytes      = 10 << 20
	maxMultipartMemory = 1 << 20
	formFieldPhoto     = "photo"
)

// PhotoService is the subset of services.PhotoService used by the HTTP layer.
type PhotoService interface {
	Upload(ctx context.Context, listingID, callerID int, upload services.PhotoUpload) (services.Result[types.ListingImage], error)
	List(ctx context.Context, listingID int, callerID *int, isAdmin bool) (services.Result[[]types.ListingImage], error)
	Open(ctx context.Context, listingID, imageID int, callerID *int, isAdmin bool) (services.Result[types.ListingImage], io.ReadCloser, error)
}

// PhotoHandler serves listing photos.
type PhotoHandler struct {
	photos PhotoService
}

func NewPhotoHandler(photos PhotoService) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// UploadPhoto accepts a multipart form with a single "photo" file.
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	listingID, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFieldPhoto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()
	if header.Size > maxPhotoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	res, err := h.photos.Upload(r.Context(), listingID, user.ID, services.PhotoUpload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeInternal(w, r, "failed to upload photo", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, res.Data)
}

func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, isAdmin := callerID(r.Context())
	res, err := h.photos.List(r.Context(), listingID, caller, isAdmin)
	if err != nil {
		writeInternal(w, r, "failed to list photos", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	items := res.Data
	if items == nil {
		items = []types.ListingImage{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetPhoto streams the photo bytes.
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID", "listing")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	imageID, err := parseIDParam(r, "imageID", "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, isAdmin := callerID(r.Context())
	res, body, err := h.photos.Open(r.Context(), listingID, imageID, caller, isAdmin)
	if err != nil {
		writeInternal(w, r, "failed to open photo", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", res.Data.ContentType)
	if res.Data.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(res.Data.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

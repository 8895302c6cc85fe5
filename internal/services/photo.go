package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/emlakhub/apiserver/internal/storage"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	msgImageNotFound   = "image not found"
	msgNotImage        = "only image uploads are accepted"
	msgInactiveUpload  = "inactive listings cannot receive photos"
	defaultPhotoSuffix = "photo"

	// sniffLen is how much http.DetectContentType looks at.
	sniffLen = 512
)

// photoExtensions lists the accepted sniffed content types.
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ImageRepository defines persistence operations for listing photo metadata.
type ImageRepository interface {
	Create(ctx context.Context, image types.ListingImage) (types.ListingImage, error)
	Get(ctx context.Context, listingID, imageID int) (types.ListingImage, error)
	ListByListing(ctx context.Context, listingID int) ([]types.ListingImage, error)
}

// ObjectStore keeps photo bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PhotoUpload is a photo received from a client. ContentType is what the
// client declared; the stored type is sniffed from Body.
type PhotoUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PhotoService stores listing photos. Uploads follow the listing edit rules
// and reads follow the listing visibility rules.
type PhotoService struct {
	listings ListingRepository
	images   ImageRepository
	objects  ObjectStore
	logger   *slog.Logger
}

func NewPhotoService(listings ListingRepository, images ImageRepository, objects ObjectStore, logger *slog.Logger) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoService{listings: listings, images: images, objects: objects, logger: logger}
}

// Upload attaches a photo to an active listing owned by callerID. The first
// photo of a listing without a cover image becomes its cover.
func (s *PhotoService) Upload(ctx context.Context, listingID, callerID int, upload PhotoUpload) (Result[types.ListingImage], error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.ListingImage](KindNotFound, msgListingNotFound), nil
	}
	if err != nil {
		return Result[types.ListingImage]{}, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	if !listing.OwnedBy(&callerID) {
		return fail[types.ListingImage](KindForbidden, msgNotListingOwner), nil
	}
	if !listing.IsActive {
		return fail[types.ListingImage](KindValidation, msgInactiveUpload), nil
	}

	// the declared content type and file name are not trusted
	body, contentType, err := sniffPhoto(upload.Body)
	if err != nil {
		return Result[types.ListingImage]{}, fmt.Errorf("read photo: %w", err)
	}
	ext, ok := photoExtensions[contentType]
	if !ok {
		return fail[types.ListingImage](KindValidation, msgNotImage), nil
	}
	if upload.ContentType != "" && upload.ContentType != contentType {
		s.logger.Debug("declared photo type differs from content", "declared", upload.ContentType, "detected", contentType)
	}

	key := PhotoObjectKey(listingID, uuid.NewString(), upload.FileName, ext)
	if err := s.objects.Put(ctx, key, body, upload.Size, contentType); err != nil {
		return Result[types.ListingImage]{}, fmt.Errorf("store photo: %w", err)
	}

	image, err := s.images.Create(ctx, types.ListingImage{
		ListingID:   listingID,
		ObjectKey:   key,
		FileName:    upload.FileName,
		ContentType: contentType,
		Size:        upload.Size,
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("remove orphaned photo failed", "key", key, "error", delErr)
		}
		if errors.Is(err, store.ErrNotFound) {
			return fail[types.ListingImage](KindNotFound, msgListingNotFound), nil
		}
		return Result[types.ListingImage]{}, fmt.Errorf("record photo: %w", err)
	}

	if err := s.listings.SetImageURLIfEmpty(ctx, listingID, PhotoURL(listingID, image.ID)); err != nil {
		return Result[types.ListingImage]{}, fmt.Errorf("set cover image: %w", err)
	}
	return succeed(image), nil
}

// List returns the photos of a listing the caller is allowed to see.
func (s *PhotoService) List(ctx context.Context, listingID int, callerID *int, isAdmin bool) (Result[[]types.ListingImage], error) {
	if res, err := s.visible(ctx, listingID, callerID, isAdmin); err != nil || !res.OK() {
		return Result[[]types.ListingImage]{Kind: res.Kind, Message: res.Message}, err
	}
	images, err := s.images.ListByListing(ctx, listingID)
	if err != nil {
		return Result[[]types.ListingImage]{}, fmt.Errorf("list photos: %w", err)
	}
	return succeed(images), nil
}

// Open streams one photo. The caller must close the returned reader.
func (s *PhotoService) Open(ctx context.Context, listingID, imageID int, callerID *int, isAdmin bool) (Result[types.ListingImage], io.ReadCloser, error) {
	if res, err := s.visible(ctx, listingID, callerID, isAdmin); err != nil || !res.OK() {
		return Result[types.ListingImage]{Kind: res.Kind, Message: res.Message}, nil, err
	}
	image, err := s.images.Get(ctx, listingID, imageID)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.ListingImage](KindNotFound, msgImageNotFound), nil, nil
	}
	if err != nil {
		return Result[types.ListingImage]{}, nil, fmt.Errorf("load photo: %w", err)
	}
	body, err := s.objects.Get(ctx, image.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fail[types.ListingImage](KindNotFound, msgImageNotFound), nil, nil
	}
	if err != nil {
		return Result[types.ListingImage]{}, nil, fmt.Errorf("open photo: %w", err)
	}
	return succeed(image), body, nil
}

func (s *PhotoService) visible(ctx context.Context, listingID int, callerID *int, isAdmin bool) (Result[bool], error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return fail[bool](KindNotFound, msgListingNotFound), nil
	}
	if err != nil {
		return Result[bool]{}, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	if !canView(listing, callerID, isAdmin) {
		return fail[bool](KindNotFound, msgListingNotFound), nil
	}
	return succeed(true), nil
}

// sniffPhoto detects the content type from the leading bytes and returns a
// reader that still yields the whole body.
func sniffPhoto(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), http.DetectContentType(head), nil
}

// PhotoObjectKey builds the storage key of a listing photo. ext comes from
// the sniffed content type, never from fileName.
func PhotoObjectKey(listingID int, id, fileName, ext string) string {
	base := slug.Make(strings.TrimSuffix(path.Base(fileName), path.Ext(fileName)))
	if base == "" {
		base = defaultPhotoSuffix
	}
	return fmt.Sprintf("listings/%d/%s-%s%s", listingID, id, base, ext)
}

// PhotoURL is the API path serving a listing photo.
func PhotoURL(listingID, imageID int) string {
	return fmt.Sprintf("/listings/%d/images/%d", listingID, imageID)
}

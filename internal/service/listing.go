package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

// ErrUploadsDisabled is returned when an image is uploaded but no object storage is configured.
var ErrUploadsDisabled = errors.New("image uploads are disabled")

// Image is an uploaded listing image.
type Image struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}

type Listing struct {
	listings model.ListingStore
	storage  model.ImageStorage
	logger   *logger.Logger
}

// NewListing creates the listing service. storage may be nil, which disables uploads.
func NewListing(
	listings model.ListingStore,
	storage model.ImageStorage,
	logger *logger.Logger,
) *Listing {
	return &Listing{
		listings: listings,
		storage:  storage,
		logger:   logger,
	}
}

// UploadsEnabled reports whether listing images can be uploaded.
func (s *Listing) UploadsEnabled() bool {
	return s.storage != nil
}

// ByCategory returns the cached collection of category in backend order.
func (s *Listing) ByCategory(ctx context.Context, cc *client.Context, category model.Category) ([]model.Listing, error) {
	return query(ctx, cc, cache.ListingsKey(category), func(ctx context.Context) ([]model.Listing, error) {
		return s.listings.ByCategory(ctx, category)
	})
}

// Get returns one listing. The detail and edit pages share its cache entry.
func (s *Listing) Get(ctx context.Context, cc *client.Context, id int64) (model.Listing, error) {
	return query(ctx, cc, cache.ListingKey(id), func(ctx context.Context) (model.Listing, error) {
		return s.listings.ByID(ctx, id)
	})
}

// Reload reads the listing from the backend even when it is cached, so a page shown after a
// failed purchase carries the current stock.
func (s *Listing) Reload(ctx context.Context, cc *client.Context, id int64) (model.Listing, error) {
	return query(ctx, cc, cache.ListingKey(id), func(ctx context.Context) (model.Listing, error) {
		return s.listings.ByID(ctx, id)
	}, cache.Force())
}

// Editable returns the listing if sellerID owns it. Listings of other sellers are reported as not found.
func (s *Listing) Editable(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error) {
	listing, err := s.Get(ctx, cc, id)
	if err != nil {
		return model.Listing{}, err
	}
	if listing.SellerID != sellerID {
		return model.Listing{}, model.ErrNotFound
	}
	return listing, nil
}

// BySeller returns the seller's own listings, active or not.
func (s *Listing) BySeller(ctx context.Context, cc *client.Context, sellerID uuid.UUID) ([]model.Listing, error) {
	return query(ctx, cc, cache.MyListingsKey(sellerID), func(ctx context.Context) ([]model.Listing, error) {
		return s.listings.BySeller(ctx, sellerID)
	})
}

// Create inserts a listing. An uploaded image is stored first and removed again if the insert fails.
func (s *Listing) Create(ctx context.Context, cc *client.Context, sellerID uuid.UUID, fields model.ListingFields, image *Image) (model.Listing, error) {
	s.logger.Debug("Listing service: creating listing",
		"seller_id", sellerID,
		"category", fields.Category)

	key, fields, err := s.uploadImage(ctx, sellerID, fields, image)
	if err != nil {
		return model.Listing{}, err
	}

	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		s.removeImage(ctx, key)
		return model.Listing{}, err
	}

	listing, err := s.listings.Create(authCtx, model.NewListing{ListingFields: fields, SellerID: sellerID})
	if err != nil {
		s.removeImage(ctx, key)
		s.logger.Error("Listing service: failed to create listing",
			"seller_id", sellerID,
			"error", err.Error())
		return model.Listing{}, fmt.Errorf("failed to create listing: %w", err)
	}

	cc.Queries.Apply(cache.ListingCreated{Listing: listing})
	s.logger.Info("Listing service: listing created",
		"listing_id", listing.ID,
		"seller_id", sellerID)
	return listing, nil
}

// Update edits a listing owned by sellerID.
func (s *Listing) Update(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64, fields model.ListingFields, image *Image) (model.Listing, error) {
	before, err := s.Editable(ctx, cc, sellerID, id)
	if err != nil {
		return model.Listing{}, err
	}

	key, fields, err := s.uploadImage(ctx, sellerID, fields, image)
	if err != nil {
		return model.Listing{}, err
	}

	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		s.removeImage(ctx, key)
		return model.Listing{}, err
	}

	after, err := s.listings.Update(authCtx, id, fields)
	if err != nil {
		s.removeImage(ctx, key)
		s.logger.Error("Listing service: failed to update listing",
			"listing_id", id,
			"error", err.Error())
		return model.Listing{}, fmt.Errorf("failed to update listing: %w", err)
	}

	cc.Queries.Apply(cache.ListingUpdated{Before: before, After: after})
	s.logger.Info("Listing service: listing updated", "listing_id", id)
	return after, nil
}

// Activate makes a listing visible on the browse page again.
func (s *Listing) Activate(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error) {
	return s.setActive(ctx, cc, sellerID, id, true)
}

// Deactivate hides a listing from the browse page.
func (s *Listing) Deactivate(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error) {
	return s.setActive(ctx, cc, sellerID, id, false)
}

func (s *Listing) setActive(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64, active bool) (model.Listing, error) {
	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		return model.Listing{}, err
	}

	listing, err := s.listings.SetActive(authCtx, id, active)
	if err != nil {
		s.logger.Error("Listing service: failed to set listing state",
			"listing_id", id,
			"active", active,
			"error", err.Error())
		return model.Listing{}, fmt.Errorf("failed to set listing state: %w", err)
	}
	if listing.SellerID == uuid.Nil {
		listing.SellerID = sellerID
	}

	cc.Queries.Apply(cache.ListingActiveSet{Listing: listing, Active: active})
	return listing, nil
}

func (s *Listing) uploadImage(ctx context.Context, sellerID uuid.UUID, fields model.ListingFields, image *Image) (string, model.ListingFields, error) {
	if image == nil {
		return "", fields, nil
	}
	if s.storage == nil {
		return "", fields, ErrUploadsDisabled
	}

	key := s.generateImageKey(sellerID, image.Filename)
	url, err := s.storage.Upload(ctx, key, image.Reader, image.Size, image.ContentType)
	if err != nil {
		s.logger.Error("Listing service: failed to upload image",
			"seller_id", sellerID,
			"error", err.Error())
		return "", fields, fmt.Errorf("failed to upload image: %w", err)
	}

	fields.ImageURL = url
	return key, fields, nil
}

func (s *Listing) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error("Listing service: failed to delete image from storage",
			"key", key,
			"error", err.Error())
	}
}

func (s *Listing) generateImageKey(sellerID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("seller-%s/image-%s%s", sellerID.String(), uuid.NewString(), ext)
}

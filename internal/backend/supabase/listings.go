package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	listingsSchema = "listings"
	listingsTable  = "listings"
)

// Listings implements model.ListingStore on the listings schema.
type Listings struct {
	client *Client
}

var _ model.ListingStore = (*Listings)(nil)

// NewListings creates a listing store.
func NewListings(client *Client) *Listings {
	return &Listings{client: client}
}

type listingRow struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    *string         `json:"image_url"`
	IsActive    *bool           `json:"is_active"`
	CreatedAt   timestamp       `json:"created_at"`
	SellerID    uuid.UUID       `json:"seller_id"`
}

func (r listingRow) toModel() model.Listing {
	l := model.Listing{
		ID:        r.ID,
		Title:     r.Title,
		Category:  model.Category(r.Category),
		Price:     r.Price,
		Stock:     r.Stock,
		IsActive:  true,
		CreatedAt: r.CreatedAt.Time,
		SellerID:  r.SellerID,
	}
	if r.Description != nil {
		l.Description = *r.Description
	}
	if r.ImageURL != nil {
		l.ImageURL = *r.ImageURL
	}
	if r.IsActive != nil {
		l.IsActive = *r.IsActive
	}
	return l
}

func toModels(rows []listingRow) []model.Listing {
	out := make([]model.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

type listingWrite struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	ImageURL    *string     `json:"image_url"`
	SellerID    *uuid.UUID  `json:"seller_id,omitempty"`
}

func newListingWrite(f model.ListingFields) listingWrite {
	w := listingWrite{
		Title:       f.Title,
		Description: f.Description,
		Category:    string(f.Category),
		Price:       json.Number(f.Price.String()),
		Stock:       f.Stock,
	}
	if f.ImageURL != "" {
		url := f.ImageURL
		w.ImageURL = &url
	}
	return w
}

// ByCategory reads the per-category collection in backend order.
func (s *Listings) ByCategory(ctx context.Context, category model.Category) ([]model.Listing, error) {
	var rows []listingRow
	err := s.client.From(category.Collection()).
		Schema(listingsSchema).
		Select("*").
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", category.Collection(), err)
	}
	return toModels(rows), nil
}

// ByID reads one listing from the unified collection.
func (s *Listings) ByID(ctx context.Context, id int64) (model.Listing, error) {
	var row listingRow
	err := s.client.From(listingsTable).
		Schema(listingsSchema).
		Select("*").
		Eq("id", id).
		Single().
		Execute(ctx, &row)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to select listing %d: %w", id, err)
	}
	return row.toModel(), nil
}

// BySeller reads a seller's listings, newest first.
func (s *Listings) BySeller(ctx context.Context, sellerID uuid.UUID) ([]model.Listing, error) {
	var rows []listingRow
	err := s.client.From(listingsTable).
		Schema(listingsSchema).
		Select("*").
		Eq("seller_id", sellerID).
		Order("created_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select listings of seller: %w", err)
	}
	return toModels(rows), nil
}

// Create inserts a listing.
func (s *Listings) Create(ctx context.Context, listing model.NewListing) (model.Listing, error) {
	w := newListingWrite(listing.ListingFields)
	w.SellerID = &listing.SellerID

	var row listingRow
	err := s.client.From(listingsTable).
		Schema(listingsSchema).
		Single().
		ExecuteInsert(ctx, w, &row)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to insert listing: %w", err)
	}
	return row.toModel(), nil
}

// Update replaces the editable columns of a listing.
func (s *Listings) Update(ctx context.Context, id int64, fields model.ListingFields) (model.Listing, error) {
	var row listingRow
	err := s.client.From(listingsTable).
		Schema(listingsSchema).
		Eq("id", id).
		Single().
		ExecuteUpdate(ctx, newListingWrite(fields), &row)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	return row.toModel(), nil
}

// SetActive sets the active flag of a listing.
func (s *Listings) SetActive(ctx context.Context, id int64, active bool) (model.Listing, error) {
	var row listingRow
	err := s.client.From(listingsTable).
		Schema(listingsSchema).
		Eq("id", id).
		Single().
		ExecuteUpdate(ctx, map[string]bool{"is_active": active}, &row)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to set active flag of listing %d: %w", id, err)
	}
	return row.toModel(), nil
}

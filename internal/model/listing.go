package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingStore defines table operations on listings.
type ListingStore interface {
	// ByCategory reads the per-category collection listings_<category>, in backend order.
	ByCategory(ctx context.Context, category Category) ([]Listing, error)
	ByID(ctx context.Context, id int64) (Listing, error)
	BySeller(ctx context.Context, sellerID uuid.UUID) ([]Listing, error)
	Create(ctx context.Context, listing NewListing) (Listing, error)
	Update(ctx context.Context, id int64, fields ListingFields) (Listing, error)
	SetActive(ctx context.Context, id int64, active bool) (Listing, error)
}

// Category is a flavour category and also the listings partition key.
type Category string

const (
	CategoryChocolate Category = "chocolate"
	CategoryFruity    Category = "fruity"
	CategoryTropical  Category = "tropical"
	CategoryCaramel   Category = "caramel"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryChocolate, CategoryFruity, CategoryTropical, CategoryCaramel}

// DefaultCategory is selected on the browse page when none is given.
const DefaultCategory = CategoryChocolate

// ParseCategory converts s to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Collection returns the backing collection name for the category.
func (c Category) Collection() string {
	return "listings_" + string(c)
}

// Listing is a seller's sale offer.
type Listing struct {
	ID          int64
	Title       string
	Description string
	Category    Category
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	IsActive    bool
	CreatedAt   time.Time
	SellerID    uuid.UUID
}

// Purchasable reports whether the listing can be bought and shown in default browse results.
func (l Listing) Purchasable() bool {
	return l.Stock > 0 && l.IsActive
}

// ListingFields are the seller-editable columns of a listing.
type ListingFields struct {
	Title       string
	Description string
	Category    Category
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

// Apply returns l with the editable columns replaced by f.
func (f ListingFields) Apply(l Listing) Listing {
	l.Title = f.Title
	l.Description = f.Description
	l.Category = f.Category
	l.Price = f.Price
	l.Stock = f.Stock
	l.ImageURL = f.ImageURL
	return l
}

// NewListing contains parameters to create a listing.
type NewListing struct {
	ListingFields
	SellerID uuid.UUID
}

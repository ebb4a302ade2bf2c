package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/model"
)

var _ model.ListingStore = (*ListingRepository)(nil)

const listingColumns = `id, title, COALESCE(description, ''), category::text, price::text, stock,
	COALESCE(image_url, ''), COALESCE(is_active, TRUE), COALESCE(created_at, 'epoch'::timestamptz), seller_id`

type ListingRepository struct {
	db *Connection
}

func NewListingRepository(db *Connection) *ListingRepository {
	return &ListingRepository{
		db: db,
	}
}

func scanListing(row pgx.Row) (model.Listing, error) {
	var (
		l         model.Listing
		category  string
		price     string
		createdAt time.Time
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &category, &price, &l.Stock,
		&l.ImageURL, &l.IsActive, &createdAt, &l.SellerID,
	)
	if err != nil {
		return model.Listing{}, err
	}

	l.Category = model.Category(category)
	l.Price, err = decimal.NewFromString(price)
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to parse price: %w", err)
	}
	if !createdAt.Equal(time.Unix(0, 0)) {
		l.CreatedAt = createdAt
	}
	return l, nil
}

func collectListings(rows pgx.Rows) ([]model.Listing, error) {
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// ByCategory reads the category partition in storage order.
func (r *ListingRepository) ByCategory(ctx context.Context, category model.Category) ([]model.Listing, error) {
	if _, err := model.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	table := pgx.Identifier{"listings", category.Collection()}.Sanitize()

	var listings []model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+listingColumns+` FROM `+table)
		if err != nil {
			return err
		}
		listings, err = collectListings(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", category.Collection(), err)
	}
	return listings, nil
}

func (r *ListingRepository) ByID(ctx context.Context, id int64) (model.Listing, error) {
	var listing model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		var err error
		listing, err = scanListing(tx.QueryRow(ctx,
			`SELECT `+listingColumns+` FROM listings.listings WHERE id = $1`, id))
		return notFound(err)
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to select listing %d: %w", id, err)
	}
	return listing, nil
}

func (r *ListingRepository) BySeller(ctx context.Context, sellerID uuid.UUID) ([]model.Listing, error) {
	var listings []model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+listingColumns+` FROM listings.listings WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
		if err != nil {
			return err
		}
		listings, err = collectListings(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select listings of seller: %w", err)
	}
	return listings, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing model.NewListing) (model.Listing, error) {
	query := `
		INSERT INTO listings.listings (title, description, category, price, stock, image_url, seller_id)
		VALUES ($1, $2, $3::listings.category_type, $4::numeric, $5, NULLIF($6, ''), $7)
		RETURNING ` + listingColumns

	var saved model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = scanListing(tx.QueryRow(ctx, query,
			listing.Title, listing.Description, string(listing.Category), listing.Price.String(),
			listing.Stock, listing.ImageURL, listing.SellerID,
		))
		return err
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to insert listing: %w", err)
	}
	return saved, nil
}

func (r *ListingRepository) Update(ctx context.Context, id int64, fields model.ListingFields) (model.Listing, error) {
	query := `
		UPDATE listings.listings
		SET title = $2, description = $3, category = $4::listings.category_type,
		    price = $5::numeric, stock = $6, image_url = NULLIF($7, '')
		WHERE id = $1
		RETURNING ` + listingColumns

	var saved model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = scanListing(tx.QueryRow(ctx, query,
			id, fields.Title, fields.Description, string(fields.Category), fields.Price.String(),
			fields.Stock, fields.ImageURL,
		))
		return notFound(err)
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	return saved, nil
}

func (r *ListingRepository) SetActive(ctx context.Context, id int64, active bool) (model.Listing, error) {
	query := `UPDATE listings.listings SET is_active = $2 WHERE id = $1 RETURNING ` + listingColumns

	var saved model.Listing
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = scanListing(tx.QueryRow(ctx, query, id, active))
		return notFound(err)
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("failed to set active flag of listing %d: %w", id, err)
	}
	return saved, nil
}

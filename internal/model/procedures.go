package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Procedures are the remote procedures of the transactions schema.
// They run as the caller identified by the access token carried in ctx.
type Procedures interface {
	Purchase(ctx context.Context, listingID int64, category Category) error
	Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	RecentActivity(ctx context.Context) ([]Activity, error)
	RecentTransactions(ctx context.Context) ([]Transaction, error)
	FavouriteFlavours(ctx context.Context) ([]FavouriteFlavour, error)
	BestSelling(ctx context.Context) ([]BestSelling, error)
	BestSellers(ctx context.Context) ([]RankedUser, error)
	LoyalBuyers(ctx context.Context) ([]RankedUser, error)
}

// Activity is a row of recent_activity.
type Activity struct {
	Type        string
	Amount      decimal.Decimal
	Date        time.Time
	ProductName string
}

// Transaction is a row of recent_transactions.
type Transaction struct {
	Type        string
	Amount      decimal.Decimal
	Date        time.Time
	ProductName string
}

// FavouriteFlavour is a row of favourite_flavours.
type FavouriteFlavour struct {
	ProductName        string
	ProductDescription string
	ProductCategory    Category
}

// BestSelling is a row of best_selling.
type BestSelling struct {
	ID         int64
	Title      string
	SellerID   uuid.UUID
	Category   Category
	SalesCount int
}

// RankedUser is a row of best_selling_seller and most_loyal_buyer.
type RankedUser struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	SalesCount int
}

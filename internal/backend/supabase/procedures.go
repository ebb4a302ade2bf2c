package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const transactionsSchema = "transactions"

// Procedures implements model.Procedures on the transactions schema.
type Procedures struct {
	client *Client
}

var _ model.Procedures = (*Procedures)(nil)

// NewProcedures creates a procedures client.
func NewProcedures(client *Client) *Procedures {
	return &Procedures{client: client}
}

// Purchase buys one unit of a listing as the caller.
func (p *Procedures) Purchase(ctx context.Context, listingID int64, category model.Category) error {
	params := map[string]any{
		"listing_id":       listingID,
		"listing_category": string(category),
	}
	if err := p.client.RPC(ctx, transactionsSchema, "purchase", params, nil); err != nil {
		return fmt.Errorf("failed to call purchase: %w", err)
	}
	return nil
}

// Deposit adds amount to the caller's balance and returns the new balance.
func (p *Procedures) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	params := map[string]any{"amount": json.Number(amount.String())}
	if err := p.client.RPC(ctx, transactionsSchema, "deposit", params, &balance); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to call deposit: %w", err)
	}
	return balance, nil
}

type activityRow struct {
	Type        string          `json:"activity_type"`
	Amount      decimal.Decimal `json:"activity_amount"`
	Date        timestamp       `json:"activity_date"`
	ProductName *string         `json:"product_name"`
}

// RecentActivity returns the caller's recent activity.
func (p *Procedures) RecentActivity(ctx context.Context) ([]model.Activity, error) {
	var rows []activityRow
	if err := p.client.RPC(ctx, transactionsSchema, "recent_activity", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to call recent_activity: %w", err)
	}

	out := make([]model.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Activity{
			Type:        r.Type,
			Amount:      r.Amount,
			Date:        r.Date.Time,
			ProductName: deref(r.ProductName),
		})
	}
	return out, nil
}

type transactionRow struct {
	Type        string          `json:"transaction_type"`
	Amount      decimal.Decimal `json:"transaction_amount"`
	Date        timestamp       `json:"transaction_date"`
	ProductName *string         `json:"product_name"`
}

// RecentTransactions returns the caller's recent transactions.
func (p *Procedures) RecentTransactions(ctx context.Context) ([]model.Transaction, error) {
	var rows []transactionRow
	if err := p.client.RPC(ctx, transactionsSchema, "recent_transactions", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to call recent_transactions: %w", err)
	}

	out := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Transaction{
			Type:        r.Type,
			Amount:      r.Amount,
			Date:        r.Date.Time,
			ProductName: deref(r.ProductName),
		})
	}
	return out, nil
}

type favouriteRow struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	ProductCategory    string `json:"product_category"`
}

// FavouriteFlavours returns the flavours the caller bought most.
func (p *Procedures) FavouriteFlavours(ctx context.Context) ([]model.FavouriteFlavour, error) {
	var rows []favouriteRow
	if err := p.client.RPC(ctx, transactionsSchema, "favourite_flavours", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to call favourite_flavours: %w", err)
	}

	out := make([]model.FavouriteFlavour, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.FavouriteFlavour{
			ProductName:        r.ProductName,
			ProductDescription: r.ProductDescription,
			ProductCategory:    model.Category(r.ProductCategory),
		})
	}
	return out, nil
}

type bestSellingRow struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	SellerID   uuid.UUID `json:"seller_id"`
	Category   string    `json:"category"`
	SalesCount int       `json:"sales_count"`
}

// BestSelling returns the most sold listings.
func (p *Procedures) BestSelling(ctx context.Context) ([]model.BestSelling, error) {
	var rows []bestSellingRow
	if err := p.client.RPC(ctx, transactionsSchema, "best_selling", nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to call best_selling: %w", err)
	}

	out := make([]model.BestSelling, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.BestSelling{
			ID:         r.ID,
			Title:      r.Title,
			SellerID:   r.SellerID,
			Category:   model.Category(r.Category),
			SalesCount: r.SalesCount,
		})
	}
	return out, nil
}

type rankedUserRow struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	SalesCount int       `json:"sales_count"`
}

// BestSellers returns the sellers with the most sales.
func (p *Procedures) BestSellers(ctx context.Context) ([]model.RankedUser, error) {
	return p.rankedUsers(ctx, "best_selling_seller")
}

// LoyalBuyers returns the buyers with the most purchases.
func (p *Procedures) LoyalBuyers(ctx context.Context) ([]model.RankedUser, error) {
	return p.rankedUsers(ctx, "most_loyal_buyer")
}

func (p *Procedures) rankedUsers(ctx context.Context, fn string) ([]model.RankedUser, error) {
	var rows []rankedUserRow
	if err := p.client.RPC(ctx, transactionsSchema, fn, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", fn, err)
	}

	out := make([]model.RankedUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.RankedUser{
			ID:         r.ID,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			SalesCount: r.SalesCount,
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

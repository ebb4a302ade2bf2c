package service

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/model"
)

// Activity reads the aggregate procedures behind the home and profile pages.
type Activity struct {
	procedures model.Procedures
}

func NewActivity(procedures model.Procedures) *Activity {
	return &Activity{procedures: procedures}
}

func (s *Activity) RecentActivity(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.Activity, error) {
	return query(ctx, cc, cache.RecentActivityKey(userID), s.procedures.RecentActivity)
}

func (s *Activity) FavouriteFlavours(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.FavouriteFlavour, error) {
	return query(ctx, cc, cache.FavouriteFlavoursKey(userID), s.procedures.FavouriteFlavours)
}

// Highlights are the home page rankings.
type Highlights struct {
	BestSelling []model.BestSelling
	BestSellers []model.RankedUser
	LoyalBuyers []model.RankedUser
}

// Highlights loads the three rankings concurrently.
func (s *Activity) Highlights(ctx context.Context, cc *client.Context) (Highlights, error) {
	var h Highlights
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := query(gctx, cc, cache.BestSellingKey(), s.procedures.BestSelling)
		h.BestSelling = rows
		return err
	})
	g.Go(func() error {
		rows, err := query(gctx, cc, cache.BestSellersKey(), s.procedures.BestSellers)
		h.BestSellers = rows
		return err
	})
	g.Go(func() error {
		rows, err := query(gctx, cc, cache.LoyalBuyersKey(), s.procedures.LoyalBuyers)
		h.LoyalBuyers = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return Highlights{}, err
	}
	return h, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

type Purchase struct {
	procedures model.Procedures
	logger     *logger.Logger
}

func NewPurchase(procedures model.Procedures, logger *logger.Logger) *Purchase {
	return &Purchase{
		procedures: procedures,
		logger:     logger,
	}
}

// Buy purchases one unit of a listing. Stock, balances and the purchase record are
// changed by the backend; afterwards every affected query is marked stale.
func (s *Purchase) Buy(ctx context.Context, cc *client.Context, buyerID uuid.UUID, listingID int64, category model.Category) error {
	s.logger.Debug("Purchase service: buying listing",
		"buyer_id", buyerID,
		"listing_id", listingID,
		"category", category)

	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		return err
	}

	if err := s.procedures.Purchase(authCtx, listingID, category); err != nil {
		s.logger.Error("Purchase service: purchase failed",
			"buyer_id", buyerID,
			"listing_id", listingID,
			"error", err.Error())
		return fmt.Errorf("failed to purchase listing: %w", err)
	}

	cc.Queries.Apply(cache.Purchased{UserID: buyerID, ListingID: listingID, Category: category})
	s.logger.Info("Purchase service: purchase completed",
		"buyer_id", buyerID,
		"listing_id", listingID)
	return nil
}

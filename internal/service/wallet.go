package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

type Wallet struct {
	profiles   model.ProfileStore
	procedures model.Procedures
	logger     *logger.Logger
}

func NewWallet(profiles model.ProfileStore, procedures model.Procedures, logger *logger.Logger) *Wallet {
	return &Wallet{
		profiles:   profiles,
		procedures: procedures,
		logger:     logger,
	}
}

// Balance returns the user's balance and keeps it subscribed so later invalidations refetch it.
func (s *Wallet) Balance(ctx context.Context, cc *client.Context, userID uuid.UUID) (decimal.Decimal, error) {
	load := func(ctx context.Context) (decimal.Decimal, error) {
		profile, err := s.profiles.Get(ctx, userID)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return profile.Balance, nil
	}

	cc.WatchBalance(userID, untyped(authorized(cc, load)))
	return query(ctx, cc, cache.BalanceKey(userID), load)
}

// Profile returns the user's profile row.
func (s *Wallet) Profile(ctx context.Context, cc *client.Context, userID uuid.UUID) (model.Profile, error) {
	return query(ctx, cc, cache.ProfileKey(userID), func(ctx context.Context) (model.Profile, error) {
		return s.profiles.Get(ctx, userID)
	})
}

// Deposit adds amount to the user's balance. The returned balance is written to the cache
// without another fetch.
func (s *Wallet) Deposit(ctx context.Context, cc *client.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	s.logger.Debug("Wallet service: depositing",
		"user_id", userID,
		"amount", amount.String())

	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	balance, err := s.procedures.Deposit(authCtx, amount)
	if err != nil {
		s.logger.Error("Wallet service: deposit failed",
			"user_id", userID,
			"error", err.Error())
		return decimal.Decimal{}, fmt.Errorf("failed to deposit: %w", err)
	}

	cc.Queries.Apply(cache.Deposited{UserID: userID, NewBalance: balance})
	s.logger.Info("Wallet service: deposit completed",
		"user_id", userID,
		"balance", balance.StringFixed(2))
	return balance, nil
}

// RecentTransactions returns the user's latest deposits, purchases and sales.
func (s *Wallet) RecentTransactions(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.Transaction, error) {
	return query(ctx, cc, cache.RecentTransactionsKey(userID), s.procedures.RecentTransactions)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/flavourmarket/internal/cache"
	"github.com/dtroode/flavourmarket/internal/mocks"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/testutil"
)

func TestPurchase_BuyMarksAffectedQueriesStale(t *testing.T) {
	ctx := context.Background()
	cc, userID := signedInClient(t)
	listings := &mocks.ListingStore{}
	procedures := &mocks.Procedures{}
	ls := NewListing(listings, nil, testutil.MakeNoopLogger())
	p := NewPurchase(procedures, testutil.MakeNoopLogger())

	rows := []model.Listing{listing(7, "Mango", "3.00", 1, true)}
	listings.On("ByCategory", mock.Anything, model.CategoryFruity).Return(rows, nil).Once()
	listings.On("ByID", mock.Anything, int64(7)).Return(rows[0], nil).Once()
	procedures.On("Purchase", mock.MatchedBy(hasAccessToken(cc)), int64(7), model.CategoryFruity).Return(nil).Once()

	_, err := ls.ByCategory(ctx, cc, model.CategoryFruity)
	require.NoError(t, err)
	_, err = ls.Get(ctx, cc, 7)
	require.NoError(t, err)

	require.NoError(t, p.Buy(ctx, cc, userID, 7, model.CategoryFruity))

	assert.True(t, cc.Queries.Get(cache.ListingsKey(model.CategoryFruity)).IsStale)
	assert.True(t, cc.Queries.Get(cache.ListingKey(7)).IsStale)

	sold := rows[0]
	sold.Stock = 0
	listings.On("ByCategory", mock.Anything, model.CategoryFruity).Return([]model.Listing{sold}, nil).Once()

	refetched, err := ls.ByCategory(ctx, cc, model.CategoryFruity)
	require.NoError(t, err)
	assert.Empty(t, FilterAndSort(refetched, BrowseQuery{Sort: SortRecent}))
	listings.AssertNumberOfCalls(t, "ByCategory", 2)
}

func TestPurchase_FailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	cc, userID := signedInClient(t)
	listings := &mocks.ListingStore{}
	procedures := &mocks.Procedures{}
	ls := NewListing(listings, nil, testutil.MakeNoopLogger())
	p := NewPurchase(procedures, testutil.MakeNoopLogger())

	listings.On("ByCategory", mock.Anything, model.CategoryFruity).
		Return([]model.Listing{listing(7, "Mango", "3.00", 1, true)}, nil).Once()
	procedures.On("Purchase", mock.Anything, int64(7), model.CategoryFruity).Return(errors.New("Insufficient balance"))

	_, err := ls.ByCategory(ctx, cc, model.CategoryFruity)
	require.NoError(t, err)

	err = p.Buy(ctx, cc, userID, 7, model.CategoryFruity)
	require.ErrorContains(t, err, "Insufficient balance")
	assert.False(t, cc.Queries.Get(cache.ListingsKey(model.CategoryFruity)).IsStale)

	_, err = ls.ByCategory(ctx, cc, model.CategoryFruity)
	require.NoError(t, err)
	listings.AssertNumberOfCalls(t, "ByCategory", 1)
}

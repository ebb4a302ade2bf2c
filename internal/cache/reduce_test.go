package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testListing(id int64, seller uuid.UUID, category model.Category, active bool) model.Listing {
	return model.Listing{
		ID:       id,
		Title:    "Flavour",
		Category: category,
		Price:    decimal.RequireFromString("3.50"),
		Stock:    4,
		IsActive: active,
		SellerID: seller,
	}
}

func TestApply_Deposited(t *testing.T) {
	user := uuid.New()
	state := State{
		BalanceKey(user):        {Data: decimal.RequireFromString("5.00"), Present: true},
		ProfileKey(user):        {Data: model.Profile{ID: user, FirstName: "Ada", Balance: decimal.RequireFromString("5.00")}, Present: true},
		RecentActivityKey(user): {Data: []model.Activity{}, Present: true},
	}

	next := Apply(state, Deposited{UserID: user, NewBalance: decimal.RequireFromString("17.50")})

	balance := next[BalanceKey(user)]
	require.True(t, balance.Present)
	assert.True(t, decimal.RequireFromString("17.50").Equal(balance.Data.(decimal.Decimal)))
	assert.False(t, balance.Stale)
	assert.True(t, next[RecentActivityKey(user)].Stale)
	assert.True(t, next[RecentTransactionsKey(user)].Stale)

	profile := next[ProfileKey(user)]
	require.True(t, profile.Present)
	assert.False(t, profile.Stale)
	assert.Equal(t, "Ada", profile.Data.(model.Profile).FirstName)
	assert.True(t, decimal.RequireFromString("17.50").Equal(profile.Data.(model.Profile).Balance))

	assert.True(t, decimal.RequireFromString("5.00").Equal(state[BalanceKey(user)].Data.(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("5.00").Equal(state[ProfileKey(user)].Data.(model.Profile).Balance))
	assert.False(t, state[RecentActivityKey(user)].Stale)
}

func TestApply_DepositedWithoutCachedProfile(t *testing.T) {
	user := uuid.New()

	next := Apply(State{}, Deposited{UserID: user, NewBalance: decimal.RequireFromString("1.00")})

	assert.True(t, next[ProfileKey(user)].Stale)
	assert.False(t, next[ProfileKey(user)].Present)
}

func TestApply_Purchased(t *testing.T) {
	user := uuid.New()
	m := Purchased{UserID: user, ListingID: 12, Category: model.CategoryTropical}

	next := Apply(State{}, m)

	for _, key := range []Key{
		ListingsKey(model.CategoryTropical),
		ListingKey(12),
		BalanceKey(user),
		RecentActivityKey(user),
		RecentTransactionsKey(user),
		ProfileKey(user),
		FavouriteFlavoursKey(user),
		BestSellingKey(),
		BestSellersKey(),
		LoyalBuyersKey(),
	} {
		assert.True(t, next[key].Stale, key.String())
		assert.False(t, next[key].Present, key.String())
	}
}

func TestApply_ListingCreated(t *testing.T) {
	seller := uuid.New()
	l := testListing(1, seller, model.CategoryFruity, true)

	next := Apply(State{}, ListingCreated{Listing: l})

	assert.True(t, next[ListingsKey(model.CategoryFruity)].Stale)
	assert.True(t, next[MyListingsKey(seller)].Stale)
}

func TestApply_ListingUpdated(t *testing.T) {
	seller := uuid.New()
	before := testListing(2, seller, model.CategoryChocolate, true)
	other := testListing(3, seller, model.CategoryChocolate, true)
	after := before
	after.Title = "Double Chocolate"
	after.Category = model.CategoryCaramel

	mine := []model.Listing{before, other}
	state := State{
		MyListingsKey(seller): {Data: mine, Present: true},
		ListingKey(2):         {Data: before, Present: true},
	}

	next := Apply(state, ListingUpdated{Before: before, After: after})

	assert.Equal(t, after, next[ListingKey(2)].Data)
	rows := next[MyListingsKey(seller)].Data.([]model.Listing)
	assert.Equal(t, "Double Chocolate", rows[0].Title)
	assert.Equal(t, other, rows[1])
	assert.True(t, next[ListingsKey(model.CategoryChocolate)].Stale)
	assert.True(t, next[ListingsKey(model.CategoryCaramel)].Stale)

	assert.Equal(t, "Flavour", mine[0].Title)
	assert.Equal(t, before, state[ListingKey(2)].Data)
}

func TestApply_ListingActiveSet(t *testing.T) {
	seller := uuid.New()
	l := testListing(4, seller, model.CategoryFruity, true)
	mine := []model.Listing{l}
	state := State{
		MyListingsKey(seller): {Data: mine, Present: true},
		ListingKey(4):         {Data: l, Present: true},
	}

	next := Apply(state, ListingActiveSet{Listing: l, Active: false})

	rows := next[MyListingsKey(seller)].Data.([]model.Listing)
	assert.False(t, rows[0].IsActive)
	assert.False(t, next[ListingKey(4)].Data.(model.Listing).IsActive)
	assert.True(t, next[ListingsKey(model.CategoryFruity)].Stale)
	assert.True(t, mine[0].IsActive)
}

func TestApply_ListingActiveSetWithoutCachedRows(t *testing.T) {
	seller := uuid.New()
	l := testListing(5, seller, model.CategoryCaramel, false)

	next := Apply(State{}, ListingActiveSet{Listing: l, Active: true})

	assert.False(t, next[ListingKey(5)].Present)
	assert.False(t, next[MyListingsKey(seller)].Present)
	assert.True(t, next[ListingsKey(model.CategoryCaramel)].Stale)
}

func TestCache_ApplyDepositWritesBalanceWithoutFetch(t *testing.T) {
	c := New()
	user := uuid.New()
	var calls atomic.Int32
	loader := func(ctx context.Context) (decimal.Decimal, error) {
		calls.Add(1)
		return decimal.RequireFromString("5.00"), nil
	}

	_, err := Fetch(context.Background(), c, BalanceKey(user), loader)
	require.NoError(t, err)

	c.Apply(Deposited{UserID: user, NewBalance: decimal.RequireFromString("17.50")})

	balance, err := Fetch(context.Background(), c, BalanceKey(user), loader)
	require.NoError(t, err)
	assert.Equal(t, "$17.50", model.FormatMoney(balance))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_ApplyToggleMarksBrowseStale(t *testing.T) {
	c := New()
	seller := uuid.New()
	l := testListing(6, seller, model.CategoryChocolate, true)
	var browseCalls atomic.Int32

	browse := func(ctx context.Context) ([]model.Listing, error) {
		browseCalls.Add(1)
		if browseCalls.Load() == 1 {
			return []model.Listing{l}, nil
		}
		inactive := l
		inactive.IsActive = false
		return []model.Listing{inactive}, nil
	}

	_, err := Fetch(context.Background(), c, ListingsKey(model.CategoryChocolate), browse)
	require.NoError(t, err)
	c.SetData(MyListingsKey(seller), func(any) any { return []model.Listing{l} })

	c.Apply(ListingActiveSet{Listing: l, Active: false})

	mine, ok := Read[[]model.Listing](c, MyListingsKey(seller))
	require.True(t, ok)
	assert.False(t, mine[0].IsActive)
	assert.True(t, c.Get(ListingsKey(model.CategoryChocolate)).IsStale)

	rows, err := Fetch(context.Background(), c, ListingsKey(model.CategoryChocolate), browse)
	require.NoError(t, err)
	assert.False(t, rows[0].Purchasable())
	assert.Equal(t, int32(2), browseCalls.Load())
}

func TestCache_CommitSkipsUnchangedSlots(t *testing.T) {
	c := New()
	user := uuid.New()
	c.SetData(BalanceKey(user), func(any) any { return decimal.RequireFromString("2.00") })
	updates, cancel := c.Subscribe(BalanceKey(user), nil)
	defer cancel()
	<-updates

	before := c.Snapshot(BalanceKey(user))
	c.Commit(before, before)

	select {
	case <-updates:
		t.Fatal("unchanged slot was rewritten")
	default:
	}
}

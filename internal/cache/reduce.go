package cache

import (
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Slot is the reducer's view of one cache entry.
type Slot struct {
	Data    any
	Present bool
	Stale   bool
}

// State is the part of the cache a mutation reads or writes.
type State map[Key]Slot

func (s State) clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s State) write(key Key, data any) {
	slot := s[key]
	slot.Data = data
	slot.Present = true
	slot.Stale = false
	s[key] = slot
}

func (s State) markStale(keys ...Key) {
	for _, key := range keys {
		slot := s[key]
		slot.Stale = true
		s[key] = slot
	}
}

// Mutation is a confirmed write whose effects must reach the cache.
type Mutation interface {
	// Keys lists every key the mutation reads or writes.
	Keys() []Key
}

// Deposited is applied after a successful deposit.
type Deposited struct {
	UserID     uuid.UUID
	NewBalance decimal.Decimal
}

func (m Deposited) Keys() []Key {
	return []Key{
		BalanceKey(m.UserID),
		ProfileKey(m.UserID),
		RecentActivityKey(m.UserID),
		RecentTransactionsKey(m.UserID),
	}
}

// Purchased is applied after a successful purchase.
type Purchased struct {
	UserID    uuid.UUID
	ListingID int64
	Category  model.Category
}

func (m Purchased) Keys() []Key {
	return []Key{
		ListingsKey(m.Category),
		ListingKey(m.ListingID),
		BalanceKey(m.UserID),
		ProfileKey(m.UserID),
		RecentActivityKey(m.UserID),
		RecentTransactionsKey(m.UserID),
		FavouriteFlavoursKey(m.UserID),
		BestSellingKey(),
		BestSellersKey(),
		LoyalBuyersKey(),
	}
}

// ListingCreated is applied after a successful insert.
type ListingCreated struct {
	Listing model.Listing
}

func (m ListingCreated) Keys() []Key {
	return []Key{
		ListingsKey(m.Listing.Category),
		MyListingsKey(m.Listing.SellerID),
	}
}

// ListingUpdated is applied after a successful edit.
type ListingUpdated struct {
	Before model.Listing
	After  model.Listing
}

func (m ListingUpdated) Keys() []Key {
	keys := []Key{
		ListingKey(m.After.ID),
		MyListingsKey(m.After.SellerID),
		ListingsKey(m.Before.Category),
	}
	if m.After.Category != m.Before.Category {
		keys = append(keys, ListingsKey(m.After.Category))
	}
	return keys
}

// ListingActiveSet is applied after a listing was activated or deactivated.
type ListingActiveSet struct {
	Listing model.Listing
	Active  bool
}

func (m ListingActiveSet) Keys() []Key {
	return []Key{
		ListingKey(m.Listing.ID),
		MyListingsKey(m.Listing.SellerID),
		ListingsKey(m.Listing.Category),
	}
}

// Apply returns the cache state after m. It never modifies state or the data it holds.
func Apply(state State, m Mutation) State {
	next := state.clone()

	switch m := m.(type) {
	case Deposited:
		next.write(BalanceKey(m.UserID), m.NewBalance)
		if profile, ok := readProfile(next, ProfileKey(m.UserID)); ok {
			profile.Balance = m.NewBalance
			next.write(ProfileKey(m.UserID), profile)
		} else {
			next.markStale(ProfileKey(m.UserID))
		}
		next.markStale(RecentActivityKey(m.UserID), RecentTransactionsKey(m.UserID))

	case Purchased:
		next.markStale(m.Keys()...)

	case ListingCreated:
		next.markStale(m.Keys()...)

	case ListingUpdated:
		next.write(ListingKey(m.After.ID), m.After)
		patchListing(next, MyListingsKey(m.After.SellerID), m.After.ID, func(model.Listing) model.Listing {
			return m.After
		})
		next.markStale(ListingsKey(m.Before.Category), ListingsKey(m.After.Category))

	case ListingActiveSet:
		setActive := func(l model.Listing) model.Listing {
			l.IsActive = m.Active
			return l
		}
		if slot, ok := next[ListingKey(m.Listing.ID)]; ok && slot.Present {
			if l, ok := slot.Data.(model.Listing); ok {
				next.write(ListingKey(m.Listing.ID), setActive(l))
			}
		}
		patchListing(next, MyListingsKey(m.Listing.SellerID), m.Listing.ID, setActive)
		next.markStale(ListingsKey(m.Listing.Category))
	}

	return next
}

func readProfile(state State, key Key) (model.Profile, bool) {
	slot, ok := state[key]
	if !ok || !slot.Present {
		return model.Profile{}, false
	}
	profile, ok := slot.Data.(model.Profile)
	return profile, ok
}

// patchListing replaces one row of a cached listing slice with a patched copy.
func patchListing(state State, key Key, id int64, patch func(model.Listing) model.Listing) {
	slot, ok := state[key]
	if !ok || !slot.Present {
		return
	}
	rows, ok := slot.Data.([]model.Listing)
	if !ok {
		return
	}

	patched := make([]model.Listing, len(rows))
	copy(patched, rows)
	for i := range patched {
		if patched[i].ID == id {
			patched[i] = patch(patched[i])
		}
	}
	state.write(key, patched)
}

// Snapshot returns the reducer state for keys.
func (c *Cache) Snapshot(keys ...Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := make(State, len(keys))
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		state[key] = Slot{
			Data:    e.Data,
			Present: e.settled && e.Err == nil,
			Stale:   e.IsStale,
		}
	}
	return state
}

// Commit writes the difference between before and after into the cache:
// slots rewritten by the reducer go through SetData, newly stale slots through Invalidate.
func (c *Cache) Commit(before, after State) {
	var stale []Key
	for key, slot := range after {
		prev := before[key]
		if slot.Present && (!prev.Present || !sameData(prev.Data, slot.Data)) {
			data := slot.Data
			c.SetData(key, func(any) any { return data })
		}
		if slot.Stale && !prev.Stale {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		c.Invalidate(stale...)
	}
}

// Apply runs the reducer for m against the cache and commits the result.
func (c *Cache) Apply(m Mutation) {
	before := c.Snapshot(m.Keys()...)
	c.Commit(before, Apply(before, m))
}

func sameData(a, b any) bool {
	switch a := a.(type) {
	case decimal.Decimal:
		b, ok := b.(decimal.Decimal)
		return ok && a.Equal(b)
	case model.Listing:
		b, ok := b.(model.Listing)
		return ok && listingEqual(a, b)
	case model.Profile:
		b, ok := b.(model.Profile)
		return ok && a.ID == b.ID && a.FirstName == b.FirstName && a.LastName == b.LastName && a.Balance.Equal(b.Balance)
	case []model.Listing:
		b, ok := b.([]model.Listing)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !listingEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func listingEqual(a, b model.Listing) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.Category == b.Category &&
		a.Price.Equal(b.Price) &&
		a.Stock == b.Stock &&
		a.ImageURL == b.ImageURL &&
		a.IsActive == b.IsActive &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.SellerID == b.SellerID
}

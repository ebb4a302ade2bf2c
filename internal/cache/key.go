package cache

import (
	"fmt"
	"strings"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
)

const keySeparator = "/"

// Key identifies one cached query: an ordered tuple of primitives in canonical string form.
type Key string

// NewKey builds a key from its parts.
func NewKey(parts ...any) Key {
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = fmt.Sprint(p)
	}
	return Key(strings.Join(ss, keySeparator))
}

// Parts returns the key's components in order.
func (k Key) Parts() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySeparator)
}

// Root returns the first component, the query name.
func (k Key) Root() string {
	root, _, _ := strings.Cut(string(k), keySeparator)
	return root
}

// HasPrefix reports whether prefix matches k on whole components.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix == "" || k == prefix {
		return true
	}
	return strings.HasPrefix(string(k), string(prefix)+keySeparator)
}

func (k Key) String() string {
	return string(k)
}

// Query names.
const (
	QueryListings           = "listings"
	QueryListing            = "listing"
	QueryMyListings         = "my-listings"
	QueryBalance            = "balance"
	QueryProfile            = "profile"
	QueryRecentActivity     = "recent-activity"
	QueryRecentTransactions = "recent-transactions"
	QueryFavouriteFlavours  = "favourite-flavours"
	QueryBestSelling        = "best-selling"
	QueryBestSellers        = "best-sellers"
	QueryLoyalBuyers        = "loyal-buyers"
)

func ListingsKey(c model.Category) Key { return NewKey(QueryListings, c) }
func ListingKey(id int64) Key { return NewKey(QueryListing, id) }
func MyListingsKey(seller uuid.UUID) Key { return NewKey(QueryMyListings, seller) }
func BalanceKey(user uuid.UUID) Key { return NewKey(QueryBalance, user) }
func ProfileKey(user uuid.UUID) Key { return NewKey(QueryProfile, user) }
func RecentActivityKey(user uuid.UUID) Key { return NewKey(QueryRecentActivity, user) }
func RecentTransactionsKey(user uuid.UUID) Key { return NewKey(QueryRecentTransactions, user) }
func FavouriteFlavoursKey(user uuid.UUID) Key { return NewKey(QueryFavouriteFlavours, user) }
func BestSellingKey() Key { return NewKey(QueryBestSelling) }
func BestSellersKey() Key { return NewKey(QueryBestSellers) }
func LoyalBuyersKey() Key { return NewKey(QueryLoyalBuyers) }

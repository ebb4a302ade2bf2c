package service

import (
	"net/url"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/model"
)

// Sort is a browse page ordering.
type Sort string

const (
	SortRecent    Sort = "recent"
	SortPopular   Sort = "popular"
	SortPriceLow  Sort = "price-low"
	SortPriceHigh Sort = "price-high"
)

// Sorts lists the orderings offered on the browse page.
var Sorts = []Sort{SortRecent, SortPopular, SortPriceLow, SortPriceHigh}

// BrowseQuery is the browse page state carried in the query string. It is never cached.
type BrowseQuery struct {
	Category model.Category
	Search   string
	Sort     Sort
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// ParseBrowseQuery reads the browse state from a query string, falling back to the
// default category and the recent ordering. Unparseable prices are ignored.
func ParseBrowseQuery(values url.Values) BrowseQuery {
	q := BrowseQuery{
		Category: model.DefaultCategory,
		Search:   strings.TrimSpace(values.Get("q")),
		Sort:     SortRecent,
	}

	if c, err := model.ParseCategory(values.Get("category")); err == nil {
		q.Category = c
	}
	if s := Sort(values.Get("sort")); slices.Contains(Sorts, s) {
		q.Sort = s
	}
	q.MinPrice = parsePrice(values.Get("min"))
	q.MaxPrice = parsePrice(values.Get("max"))

	return q
}

func parsePrice(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// Values encodes q back into a query string.
func (q BrowseQuery) Values() url.Values {
	values := url.Values{}
	values.Set("category", string(q.Category))
	values.Set("sort", string(q.Sort))
	if q.Search != "" {
		values.Set("q", q.Search)
	}
	if q.MinPrice != nil {
		values.Set("min", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		values.Set("max", q.MaxPrice.String())
	}
	return values
}

// FilterAndSort returns the listings shown for q. rows are in fetch order and are not modified.
func FilterAndSort(rows []model.Listing, q BrowseQuery) []model.Listing {
	search := strings.ToLower(q.Search)

	out := make([]model.Listing, 0, len(rows))
	for _, l := range rows {
		if !l.Purchasable() {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Title), search) {
			continue
		}
		if q.MinPrice != nil && l.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && l.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		out = append(out, l)
	}

	switch q.Sort {
	case SortRecent:
		slices.Reverse(out)
	case SortPriceLow:
		slices.SortStableFunc(out, func(a, b model.Listing) int {
			return a.Price.Cmp(b.Price)
		})
	case SortPriceHigh:
		slices.SortStableFunc(out, func(a, b model.Listing) int {
			return b.Price.Cmp(a.Price)
		})
	}

	return out
}

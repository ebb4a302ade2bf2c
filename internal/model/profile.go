package model

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfileStore defines operations on public.profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (Profile, error)
	Create(ctx context.Context, profile Profile) error
}

// Profile holds the balance and names of an identity.
type Profile struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Balance   decimal.Decimal
}

// FormatMoney renders an amount as dollars with two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

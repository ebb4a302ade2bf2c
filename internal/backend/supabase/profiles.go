package supabase

import (
	"context"
	"fmt"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const profilesTable = "profiles"

// Profiles implements model.ProfileStore on public.profiles.
type Profiles struct {
	client *Client
}

var _ model.ProfileStore = (*Profiles)(nil)

// NewProfiles creates a profile store.
func NewProfiles(client *Client) *Profiles {
	return &Profiles{client: client}
}

type profileRow struct {
	ID        uuid.UUID        `json:"id"`
	FirstName *string          `json:"first_name"`
	LastName  *string          `json:"last_name"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
}

// Get reads a profile.
func (s *Profiles) Get(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	var row profileRow
	err := s.client.From(profilesTable).
		Select("id,first_name,last_name,balance").
		Eq("id", userID).
		Single().
		Execute(ctx, &row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to select profile: %w", err)
	}

	p := model.Profile{ID: row.ID, Balance: decimal.Zero}
	if row.FirstName != nil {
		p.FirstName = *row.FirstName
	}
	if row.LastName != nil {
		p.LastName = *row.LastName
	}
	if row.Balance != nil {
		p.Balance = *row.Balance
	}
	return p, nil
}

// Create inserts the profile row of a new user. The balance starts at the column default.
func (s *Profiles) Create(ctx context.Context, profile model.Profile) error {
	row := profileRow{
		ID:        profile.ID,
		FirstName: &profile.FirstName,
		LastName:  &profile.LastName,
	}
	if err := s.client.From(profilesTable).ExecuteInsert(ctx, row, nil); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

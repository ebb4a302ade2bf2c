package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	db *Connection
}

func NewProfileRepository(db *Connection) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	query := `SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), balance::text
			  FROM public.profiles WHERE id = $1`

	var (
		profile model.Profile
		balance string
	)
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query, userID).Scan(&profile.ID, &profile.FirstName, &profile.LastName, &balance)
		return notFound(err)
	})
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to select profile: %w", err)
	}

	profile.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to parse balance: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepository) Create(ctx context.Context, profile model.Profile) error {
	query := `INSERT INTO public.profiles (id, first_name, last_name) VALUES ($1, $2, $3)`

	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query, profile.ID, profile.FirstName, profile.LastName)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

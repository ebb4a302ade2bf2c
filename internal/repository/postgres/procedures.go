package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/model"
)

var _ model.Procedures = (*ProcedureRepository)(nil)

// ProcedureRepository calls the transactions schema functions directly.
type ProcedureRepository struct {
	db *Connection
}

func NewProcedureRepository(db *Connection) *ProcedureRepository {
	return &ProcedureRepository{
		db: db,
	}
}

func (r *ProcedureRepository) Purchase(ctx context.Context, listingID int64, category model.Category) error {
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT transactions.purchase($1, $2::listings.category_type)`, listingID, string(category))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to call purchase: %w", err)
	}
	return nil
}

func (r *ProcedureRepository) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT transactions.deposit($1::numeric)::text`, amount.String()).Scan(&balance)
	})
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to call deposit: %w", err)
	}

	newBalance, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse balance: %w", err)
	}
	return newBalance, nil
}

type amountRow struct {
	Type        string
	Amount      decimal.Decimal
	Date        time.Time
	ProductName string
}

func (r *ProcedureRepository) amountRows(ctx context.Context, query string) ([]amountRow, error) {
	var out []amountRow
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				row    amountRow
				amount string
			)
			if err := rows.Scan(&row.Type, &amount, &row.Date, &row.ProductName); err != nil {
				return err
			}
			if row.Amount, err = decimal.NewFromString(amount); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

func (r *ProcedureRepository) RecentActivity(ctx context.Context) ([]model.Activity, error) {
	rows, err := r.amountRows(ctx, `SELECT activity_type, activity_amount::text, activity_date, COALESCE(product_name, '')
		FROM transactions.recent_activity()`)
	if err != nil {
		return nil, fmt.Errorf("failed to call recent_activity: %w", err)
	}

	out := make([]model.Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Activity{Type: row.Type, Amount: row.Amount, Date: row.Date, ProductName: row.ProductName})
	}
	return out, nil
}

func (r *ProcedureRepository) RecentTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.amountRows(ctx, `SELECT transaction_type, transaction_amount::text, transaction_date, COALESCE(product_name, '')
		FROM transactions.recent_transactions()`)
	if err != nil {
		return nil, fmt.Errorf("failed to call recent_transactions: %w", err)
	}

	out := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Transaction{Type: row.Type, Amount: row.Amount, Date: row.Date, ProductName: row.ProductName})
	}
	return out, nil
}

func (r *ProcedureRepository) FavouriteFlavours(ctx context.Context) ([]model.FavouriteFlavour, error) {
	var out []model.FavouriteFlavour
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT product_name, product_description, product_category::text
			FROM transactions.favourite_flavours()`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				f        model.FavouriteFlavour
				category string
			)
			if err := rows.Scan(&f.ProductName, &f.ProductDescription, &category); err != nil {
				return err
			}
			f.ProductCategory = model.Category(category)
			out = append(out, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call favourite_flavours: %w", err)
	}
	return out, nil
}

func (r *ProcedureRepository) BestSelling(ctx context.Context) ([]model.BestSelling, error) {
	var out []model.BestSelling
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, title, seller_id, category::text, sales_count
			FROM transactions.best_selling()`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b        model.BestSelling
				category string
			)
			if err := rows.Scan(&b.ID, &b.Title, &b.SellerID, &category, &b.SalesCount); err != nil {
				return err
			}
			b.Category = model.Category(category)
			out = append(out, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call best_selling: %w", err)
	}
	return out, nil
}

func (r *ProcedureRepository) BestSellers(ctx context.Context) ([]model.RankedUser, error) {
	return r.rankedUsers(ctx, "best_selling_seller")
}

func (r *ProcedureRepository) LoyalBuyers(ctx context.Context) ([]model.RankedUser, error) {
	return r.rankedUsers(ctx, "most_loyal_buyer")
}

func (r *ProcedureRepository) rankedUsers(ctx context.Context, fn string) ([]model.RankedUser, error) {
	query := `SELECT id, first_name, last_name, sales_count FROM ` +
		pgx.Identifier{"transactions", fn}.Sanitize() + `()`

	var out []model.RankedUser
	err := r.db.asCaller(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u model.RankedUser
			if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.SalesCount); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", fn, err)
	}
	return out, nil
}

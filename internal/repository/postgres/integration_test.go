//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	ctxManager "github.com/dtroode/flavourmarket/internal/api/http/context"
	"github.com/dtroode/flavourmarket/internal/model"
	repo "github.com/dtroode/flavourmarket/internal/repository/postgres"
	"github.com/dtroode/flavourmarket/internal/token"
)

const backendSecret = "integration-secret"

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "flavourmarket_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/flavourmarket_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

type fixture struct {
	conn       *repo.Connection
	ctxManager *ctxManager.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	m := ctxManager.NewManager()

	conn, err := repo.NewConnection(ctx, dsn, true, token.NewJWT("cookie-secret", backendSecret), m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return fixture{conn: conn, ctxManager: m}
}

// signUp inserts an auth user and its profile and returns a context acting as that user.
func (f fixture) signUp(t *testing.T, email string) (uuid.UUID, context.Context) {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()

	_, err := f.conn.Exec(ctx, `INSERT INTO auth.users (id, email) VALUES ($1, $2)`, id, email)
	require.NoError(t, err)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.String(),
		"email": email,
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := access.SignedString([]byte(backendSecret))
	require.NoError(t, err)

	userCtx := f.ctxManager.SetAccessTokenToContext(ctx, signed)
	require.NoError(t, repo.NewProfileRepository(f.conn).Create(userCtx, model.Profile{ID: id, FirstName: "First", LastName: email}))
	return id, userCtx
}

func TestMarketplace_ListDepositPurchase(t *testing.T) {
	f := newFixture(t)
	listings := repo.NewListingRepository(f.conn)
	profiles := repo.NewProfileRepository(f.conn)
	procedures := repo.NewProcedureRepository(f.conn)

	sellerID, sellerCtx := f.signUp(t, "seller@example.com")
	buyerID, buyerCtx := f.signUp(t, "buyer@example.com")

	created, err := listings.Create(sellerCtx, model.NewListing{
		ListingFields: model.ListingFields{
			Title:       "Mango Tango",
			Description: "tropical",
			Category:    model.CategoryTropical,
			Price:       decimal.RequireFromString("5.00"),
			Stock:       1,
		},
		SellerID: sellerID,
	})
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.Equal(t, sellerID, created.SellerID)

	tropical, err := listings.ByCategory(context.Background(), model.CategoryTropical)
	require.NoError(t, err)
	require.Len(t, tropical, 1)

	chocolate, err := listings.ByCategory(context.Background(), model.CategoryChocolate)
	require.NoError(t, err)
	require.Empty(t, chocolate)

	balance, err := procedures.Deposit(buyerCtx, decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	require.Equal(t, "$12.50", model.FormatMoney(balance))

	require.NoError(t, procedures.Purchase(buyerCtx, created.ID, model.CategoryTropical))

	bought, err := listings.ByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 0, bought.Stock)
	require.False(t, bought.Purchasable())

	buyer, err := profiles.Get(buyerCtx, buyerID)
	require.NoError(t, err)
	require.Equal(t, "$7.50", model.FormatMoney(buyer.Balance))

	seller, err := profiles.Get(sellerCtx, sellerID)
	require.NoError(t, err)
	require.Equal(t, "$5.00", model.FormatMoney(seller.Balance))

	err = procedures.Purchase(buyerCtx, created.ID, model.CategoryTropical)
	require.Error(t, err)

	txs, err := procedures.RecentTransactions(buyerCtx)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	activity, err := procedures.RecentActivity(sellerCtx)
	require.NoError(t, err)
	require.NotEmpty(t, activity)

	favourites, err := procedures.FavouriteFlavours(buyerCtx)
	require.NoError(t, err)
	require.Len(t, favourites, 1)
	require.Equal(t, "Mango Tango", favourites[0].ProductName)

	best, err := procedures.BestSelling(context.Background())
	require.NoError(t, err)
	require.Len(t, best, 1)
	require.Equal(t, 1, best[0].SalesCount)

	sellers, err := procedures.BestSellers(context.Background())
	require.NoError(t, err)
	require.Equal(t, sellerID, sellers[0].ID)

	buyers, err := procedures.LoyalBuyers(context.Background())
	require.NoError(t, err)
	require.Equal(t, buyerID, buyers[0].ID)
}

func TestListingRepository_UpdateAndToggle(t *testing.T) {
	f := newFixture(t)
	listings := repo.NewListingRepository(f.conn)
	sellerID, sellerCtx := f.signUp(t, "editor@example.com")
	_, otherCtx := f.signUp(t, "other@example.com")

	created, err := listings.Create(sellerCtx, model.NewListing{
		ListingFields: model.ListingFields{
			Title:    "Salted Caramel",
			Category: model.CategoryCaramel,
			Price:    decimal.RequireFromString("3.00"),
			Stock:    4,
		},
		SellerID: sellerID,
	})
	require.NoError(t, err)

	updated, err := listings.Update(sellerCtx, created.ID, model.ListingFields{
		Title:    "Choc Caramel",
		Category: model.CategoryChocolate,
		Price:    decimal.RequireFromString("3.50"),
		Stock:    4,
		ImageURL: "https://img.example.com/c.png",
	})
	require.NoError(t, err)
	require.Equal(t, model.CategoryChocolate, updated.Category)

	chocolate, err := listings.ByCategory(context.Background(), model.CategoryChocolate)
	require.NoError(t, err)
	require.Len(t, chocolate, 1)

	_, err = listings.Update(otherCtx, created.ID, model.ListingFields{
		Title: "Hijacked", Category: model.CategoryChocolate, Price: decimal.RequireFromString("1"), Stock: 1,
	})
	require.ErrorIs(t, err, model.ErrNotFound)

	toggled, err := listings.SetActive(sellerCtx, created.ID, false)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	mine, err := listings.BySeller(sellerCtx, sellerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.False(t, mine[0].IsActive)

	_, err = listings.ByID(context.Background(), 999999)
	require.ErrorIs(t, err, model.ErrNotFound)
}

package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ctxManager "github.com/dtroode/flavourmarket/internal/api/http/context"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anonKey = "anon-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL + "/", APIKey: anonKey}, ctxManager.NewManager())
	require.NoError(t, err)
	return c
}

func userContext(token string) context.Context {
	return ctxManager.NewManager().SetAccessTokenToContext(context.Background(), token)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"}, nil)
	require.Error(t, err)

	_, err = New(Config{URL: "http://x"}, nil)
	require.Error(t, err)
}

func TestListings_ByCategory(t *testing.T) {
	seller := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/listings_fruity", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "listings", r.Header.Get("Accept-Profile"))
		assert.Equal(t, anonKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+anonKey, r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `[
			{"id":1,"title":"Berry Bliss","description":null,"category":"fruity","price":4.5,"stock":3,"image_url":null,"is_active":true,"created_at":"2024-03-01T10:00:00.123456+00:00","seller_id":"`+seller.String()+`"},
			{"id":2,"title":"Lemon Zest","description":"tart","category":"fruity","price":"3.25","stock":0,"image_url":"https://img/x.png","is_active":null,"created_at":null,"seller_id":"`+seller.String()+`"}
		]`)
	})

	rows, err := NewListings(c).ByCategory(context.Background(), model.CategoryFruity)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, "Berry Bliss", rows[0].Title)
	assert.Equal(t, "", rows[0].Description)
	assert.True(t, decimal.RequireFromString("4.5").Equal(rows[0].Price))
	assert.Equal(t, 2024, rows[0].CreatedAt.Year())
	assert.Equal(t, seller, rows[0].SellerID)

	assert.Equal(t, "tart", rows[1].Description)
	assert.True(t, rows[1].IsActive)
	assert.Equal(t, "https://img/x.png", rows[1].ImageURL)
	assert.False(t, rows[1].Purchasable())
}

func TestListings_ByIDNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		assert.Equal(t, "eq.42", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = io.WriteString(w, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`)
	})

	_, err := NewListings(c).ByID(context.Background(), 42)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListings_BySeller(t *testing.T) {
	seller := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/listings", r.URL.Path)
		assert.Equal(t, "eq."+seller.String(), r.URL.Query().Get("seller_id"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		_, _ = io.WriteString(w, `[]`)
	})

	rows, err := NewListings(c).BySeller(context.Background(), seller)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListings_CreateUsesCallerToken(t *testing.T) {
	seller := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "listings", r.Header.Get("Content-Profile"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Choco Lava", body["title"])
		assert.Equal(t, "chocolate", body["category"])
		assert.Equal(t, 5.99, body["price"])
		assert.Equal(t, seller.String(), body["seller_id"])
		assert.Nil(t, body["image_url"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":9,"title":"Choco Lava","category":"chocolate","price":5.99,"stock":2,"is_active":true,"seller_id":"`+seller.String()+`"}`)
	})

	l, err := NewListings(c).Create(userContext("user-token"), model.NewListing{
		ListingFields: model.ListingFields{
			Title:       "Choco Lava",
			Description: "molten",
			Category:    model.CategoryChocolate,
			Price:       decimal.RequireFromString("5.99"),
			Stock:       2,
		},
		SellerID: seller,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), l.ID)
}

func TestListings_SetActive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.3", r.URL.Query().Get("id"))

		var body map[string]bool
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]bool{"is_active": false}, body)

		_, _ = io.WriteString(w, `{"id":3,"title":"x","category":"caramel","price":1,"stock":1,"is_active":false,"seller_id":"`+uuid.NewString()+`"}`)
	})

	l, err := NewListings(c).SetActive(userContext("t"), 3, false)
	require.NoError(t, err)
	assert.False(t, l.IsActive)
}

func TestProfiles_Get(t *testing.T) {
	user := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Empty(t, r.Header.Get("Accept-Profile"))
		assert.Equal(t, "id,first_name,last_name,balance", r.URL.Query().Get("select"))
		_, _ = io.WriteString(w, `{"id":"`+user.String()+`","first_name":"Ada","last_name":null,"balance":5}`)
	})

	p, err := NewProfiles(c).Get(userContext("t"), user)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "", p.LastName)
	assert.Equal(t, "$5.00", model.FormatMoney(p.Balance))
}

func TestProcedures_Deposit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/deposit", r.URL.Path)
		assert.Equal(t, "transactions", r.Header.Get("Content-Profile"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"amount":12.5}`, string(raw))

		_, _ = io.WriteString(w, `17.5`)
	})

	balance, err := NewProcedures(c).Deposit(userContext("t"), decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	assert.Equal(t, "$17.50", model.FormatMoney(balance))
}

func TestProcedures_PurchaseFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"listing_id":4,"listing_category":"tropical"}`, string(raw))

		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"P0001","message":"Insufficient balance"}`)
	})

	err := NewProcedures(c).Purchase(userContext("t"), 4, model.CategoryTropical)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "P0001", apiErr.Code)
}

func TestProcedures_Aggregates(t *testing.T) {
	seller := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{}`, string(raw))

		switch r.URL.Path {
		case "/rest/v1/rpc/recent_activity":
			_, _ = io.WriteString(w, `[{"activity_type":"purchase","activity_amount":5.99,"activity_date":"2024-03-01","product_name":"Choco"}]`)
		case "/rest/v1/rpc/recent_transactions":
			_, _ = io.WriteString(w, `[{"transaction_type":"deposit","transaction_amount":10,"transaction_date":"2024-03-02T08:00:00+00:00","product_name":null}]`)
		case "/rest/v1/rpc/favourite_flavours":
			_, _ = io.WriteString(w, `[{"product_name":"Choco","product_description":"rich","product_category":"chocolate"}]`)
		case "/rest/v1/rpc/best_selling":
			_, _ = io.WriteString(w, `[{"id":1,"title":"Choco","seller_id":"`+seller.String()+`","category":"chocolate","sales_count":12}]`)
		case "/rest/v1/rpc/best_selling_seller", "/rest/v1/rpc/most_loyal_buyer":
			_, _ = io.WriteString(w, `[{"id":"`+seller.String()+`","first_name":"Ada","last_name":"L","sales_count":3}]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	p := NewProcedures(c)
	ctx := userContext("t")

	activity, err := p.RecentActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), activity[0].Date)

	txs, err := p.RecentTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "", txs[0].ProductName)

	favs, err := p.FavouriteFlavours(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryChocolate, favs[0].ProductCategory)

	best, err := p.BestSelling(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, best[0].SalesCount)

	sellers, err := p.BestSellers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", sellers[0].FirstName)

	buyers, err := p.LoyalBuyers(ctx)
	require.NoError(t, err)
	assert.Equal(t, seller, buyers[0].ID)
}

func TestAuth_SignIn(t *testing.T) {
	user := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"expires_at":1700000000,
			"user":{"id":"`+user.String()+`","email":"ada@example.com","created_at":"2023-12-01T00:00:00Z","user_metadata":{"first_name":"Ada","last_name":"Lovelace"}}}`)
	})

	s, err := NewAuth(c).SignIn(context.Background(), "ada@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "rt", s.RefreshToken)
	assert.Equal(t, int64(1700000000), s.ExpiresAt.Unix())
	assert.Equal(t, user, s.User.ID)
	assert.Equal(t, "Ada Lovelace", s.User.DisplayName())
}

func TestAuth_SignInInvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "legacy", body: `{"error":"invalid_grant","error_description":"Invalid login credentials"}`},
		{name: "current", body: `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := NewAuth(c).SignIn(context.Background(), "ada@example.com", "wrongpass")
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
			assert.Contains(t, err.Error(), "Invalid login credentials")
		})
	}
}

func TestAuth_SignUpSendsMetadata(t *testing.T) {
	user := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)

		var body struct {
			Email string            `json:"email"`
			Data  map[string]string `json:"data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body.Email)
		assert.Equal(t, "Ada", body.Data["first_name"])

		_, _ = io.WriteString(w, `{"id":"`+user.String()+`","email":"ada@example.com","user_metadata":{"first_name":"Ada"}}`)
	})

	s, err := NewAuth(c).SignUp(context.Background(), model.SignUpParams{
		Email: "ada@example.com", Password: "password1", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	assert.False(t, s.HasTokens())
	assert.Equal(t, user, s.User.ID)
}

func TestAuth_GetUserAndSignOut(t *testing.T) {
	user := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/user":
			_, _ = io.WriteString(w, `{"id":"`+user.String()+`","email":"ada@example.com"}`)
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	a := NewAuth(c)

	identity, err := a.GetUser(context.Background(), "at")
	require.NoError(t, err)
	assert.Equal(t, user, identity.ID)

	require.NoError(t, a.SignOut(context.Background(), "at"))
}

func TestAuth_GetUserUnauthenticated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
	})

	_, err := NewAuth(c).GetUser(context.Background(), "expired")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestAuth_Refresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"at2","refresh_token":"rt2","expires_in":60,"user":{"id":"`+uuid.NewString()+`"}}`)
	})
	a := NewAuth(c)
	a.now = func() time.Time { return now }

	s, err := a.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", s.AccessToken)
	assert.Equal(t, now.Add(time.Minute), s.ExpiresAt)
}

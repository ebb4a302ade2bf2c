// Package mocks provides testify mocks of the model interfaces.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/flavourmarket/internal/model"
)

var (
	_ model.ListingStore = (*ListingStore)(nil)
	_ model.ProfileStore = (*ProfileStore)(nil)
	_ model.Procedures   = (*Procedures)(nil)
	_ model.AuthProvider = (*AuthProvider)(nil)
	_ model.SessionStore = (*SessionStore)(nil)
	_ model.ImageStorage = (*ImageStorage)(nil)
)

type ListingStore struct {
	mock.Mock
}

func (m *ListingStore) ByCategory(ctx context.Context, category model.Category) ([]model.Listing, error) {
	args := m.Called(ctx, category)
	listings, _ := args.Get(0).([]model.Listing)
	return listings, args.Error(1)
}

func (m *ListingStore) ByID(ctx context.Context, id int64) (model.Listing, error) {
	args := m.Called(ctx, id)
	listing, _ := args.Get(0).(model.Listing)
	return listing, args.Error(1)
}

func (m *ListingStore) BySeller(ctx context.Context, sellerID uuid.UUID) ([]model.Listing, error) {
	args := m.Called(ctx, sellerID)
	listings, _ := args.Get(0).([]model.Listing)
	return listings, args.Error(1)
}

func (m *ListingStore) Create(ctx context.Context, listing model.NewListing) (model.Listing, error) {
	args := m.Called(ctx, listing)
	created, _ := args.Get(0).(model.Listing)
	return created, args.Error(1)
}

func (m *ListingStore) Update(ctx context.Context, id int64, fields model.ListingFields) (model.Listing, error) {
	args := m.Called(ctx, id, fields)
	updated, _ := args.Get(0).(model.Listing)
	return updated, args.Error(1)
}

func (m *ListingStore) SetActive(ctx context.Context, id int64, active bool) (model.Listing, error) {
	args := m.Called(ctx, id, active)
	updated, _ := args.Get(0).(model.Listing)
	return updated, args.Error(1)
}

type ProfileStore struct {
	mock.Mock
}

func (m *ProfileStore) Get(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(model.Profile)
	return profile, args.Error(1)
}

func (m *ProfileStore) Create(ctx context.Context, profile model.Profile) error {
	return m.Called(ctx, profile).Error(0)
}

type Procedures struct {
	mock.Mock
}

func (m *Procedures) Purchase(ctx context.Context, listingID int64, category model.Category) error {
	return m.Called(ctx, listingID, category).Error(0)
}

func (m *Procedures) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, amount)
	balance, _ := args.Get(0).(decimal.Decimal)
	return balance, args.Error(1)
}

func (m *Procedures) RecentActivity(ctx context.Context) ([]model.Activity, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.Activity)
	return rows, args.Error(1)
}

func (m *Procedures) RecentTransactions(ctx context.Context) ([]model.Transaction, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.Transaction)
	return rows, args.Error(1)
}

func (m *Procedures) FavouriteFlavours(ctx context.Context) ([]model.FavouriteFlavour, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.FavouriteFlavour)
	return rows, args.Error(1)
}

func (m *Procedures) BestSelling(ctx context.Context) ([]model.BestSelling, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.BestSelling)
	return rows, args.Error(1)
}

func (m *Procedures) BestSellers(ctx context.Context) ([]model.RankedUser, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.RankedUser)
	return rows, args.Error(1)
}

func (m *Procedures) LoyalBuyers(ctx context.Context) ([]model.RankedUser, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.RankedUser)
	return rows, args.Error(1)
}

type AuthProvider struct {
	mock.Mock
}

func (m *AuthProvider) SignUp(ctx context.Context, params model.SignUpParams) (model.AuthSession, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(model.AuthSession)
	return s, args.Error(1)
}

func (m *AuthProvider) SignIn(ctx context.Context, email, password string) (model.AuthSession, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(model.AuthSession)
	return s, args.Error(1)
}

func (m *AuthProvider) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *AuthProvider) GetUser(ctx context.Context, accessToken string) (model.Identity, error) {
	args := m.Called(ctx, accessToken)
	identity, _ := args.Get(0).(model.Identity)
	return identity, args.Error(1)
}

func (m *AuthProvider) Refresh(ctx context.Context, refreshToken string) (model.AuthSession, error) {
	args := m.Called(ctx, refreshToken)
	s, _ := args.Get(0).(model.AuthSession)
	return s, args.Error(1)
}

type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Save(ctx context.Context, sessionID string, tokens model.SessionTokens, ttl time.Duration) error {
	return m.Called(ctx, sessionID, tokens, ttl).Error(0)
}

func (m *SessionStore) Get(ctx context.Context, sessionID string) (model.SessionTokens, error) {
	args := m.Called(ctx, sessionID)
	tokens, _ := args.Get(0).(model.SessionTokens)
	return tokens, args.Error(1)
}

func (m *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type ImageStorage struct {
	mock.Mock
}

func (m *ImageStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *ImageStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

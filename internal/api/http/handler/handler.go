// Package handler serves the storefront pages and form posts.
package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/api/http/middleware"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/service"
	"github.com/dtroode/flavourmarket/internal/validation"
)

const flashCookie = "fm_flash"

// AuthService defines sign-up, sign-in and sign-out.
type AuthService interface {
	SignUp(ctx context.Context, cc *client.Context, params model.SignUpParams) (bool, error)
	SignIn(ctx context.Context, cc *client.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context, cc *client.Context) error
}

// ListingService defines listing reads and seller mutations.
type ListingService interface {
	UploadsEnabled() bool
	ByCategory(ctx context.Context, cc *client.Context, category model.Category) ([]model.Listing, error)
	Get(ctx context.Context, cc *client.Context, id int64) (model.Listing, error)
	Reload(ctx context.Context, cc *client.Context, id int64) (model.Listing, error)
	Editable(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error)
	BySeller(ctx context.Context, cc *client.Context, sellerID uuid.UUID) ([]model.Listing, error)
	Create(ctx context.Context, cc *client.Context, sellerID uuid.UUID, fields model.ListingFields, image *service.Image) (model.Listing, error)
	Update(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64, fields model.ListingFields, image *service.Image) (model.Listing, error)
	Activate(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error)
	Deactivate(ctx context.Context, cc *client.Context, sellerID uuid.UUID, id int64) (model.Listing, error)
}

// WalletService defines balance and profile reads and deposits.
type WalletService interface {
	Balance(ctx context.Context, cc *client.Context, userID uuid.UUID) (decimal.Decimal, error)
	Profile(ctx context.Context, cc *client.Context, userID uuid.UUID) (model.Profile, error)
	Deposit(ctx context.Context, cc *client.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	RecentTransactions(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.Transaction, error)
}

// PurchaseService defines buying a listing.
type PurchaseService interface {
	Buy(ctx context.Context, cc *client.Context, buyerID uuid.UUID, listingID int64, category model.Category) error
}

// ActivityService defines the activity reports and home page rankings.
type ActivityService interface {
	RecentActivity(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.Activity, error)
	FavouriteFlavours(ctx context.Context, cc *client.Context, userID uuid.UUID) ([]model.FavouriteFlavour, error)
	Highlights(ctx context.Context, cc *client.Context) (service.Highlights, error)
}

// Services groups the services the handler renders pages from.
type Services struct {
	Auth     AuthService
	Listings ListingService
	Wallet   WalletService
	Purchase PurchaseService
	Activity ActivityService
}

// Handler serves every storefront page.
type Handler struct {
	svc        Services
	validator  *validation.Validator
	renderer   *Renderer
	ctxManager middleware.ClientManager
	logger     *logger.Logger
}

func New(
	services Services,
	validator *validation.Validator,
	renderer *Renderer,
	ctxManager middleware.ClientManager,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		svc:        services,
		validator:  validator,
		renderer:   renderer,
		ctxManager: ctxManager,
		logger:     logger,
	}
}

// Page is the data every template receives.
type Page struct {
	Title    string
	Identity *model.Identity
	Balance  string
	Flash    string
	Data     any
}

// formView carries a form's values and its validation or submission errors.
type formView[T any] struct {
	Form   T
	Errors validation.FieldErrors
	Error  string
	Notice string
}

func (h *Handler) client(r *http.Request) *client.Context {
	cc, ok := middleware.ClientFrom(r.Context(), h.ctxManager)
	if !ok {
		panic("handler: request has no client context")
	}
	return cc
}

// identity returns the signed-in identity, waiting for the first lookup.
func (h *Handler) identity(r *http.Request) *model.Identity {
	return h.client(r).Identity(r.Context())
}

// page builds the template data shared by all pages. The navigation balance is best effort.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, title string, data any) Page {
	p := Page{
		Title:    title,
		Identity: h.identity(r),
		Flash:    takeFlash(w, r),
		Data:     data,
	}
	if p.Identity != nil {
		balance, err := h.svc.Wallet.Balance(r.Context(), h.client(r), p.Identity.ID)
		if err != nil {
			h.logger.Debug("Handler: failed to load navigation balance", "error", err)
		} else {
			p.Balance = model.FormatMoney(balance)
		}
	}
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	h.renderer.Render(w, status, name, h.page(w, r, title, data))
}

// redirect sends a 303 so that a form post is followed by a GET.
func redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		setFlash(w, flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrNotFound
	}
	return id, nil
}

// safeNext keeps post-login redirects on this site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

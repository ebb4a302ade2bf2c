package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/validation"
)

type profileView struct {
	Profile    model.Profile
	Identity   model.Identity
	Activity   []model.Activity
	Favourites []model.FavouriteFlavour
}

type walletView struct {
	Balance      decimal.Decimal
	Transactions []model.Transaction
	Deposit      formView[validation.DepositForm]
}

// Profile shows the user's profile, recent activity and favourite flavours.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	cc := h.client(r)
	identity := h.identity(r)
	view := profileView{Identity: *identity}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		view.Profile, err = h.svc.Wallet.Profile(ctx, cc, identity.ID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Activity, err = h.svc.Activity.RecentActivity(ctx, cc, identity.ID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Favourites, err = h.svc.Activity.FavouriteFlavours(ctx, cc, identity.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "profile", "Profile", view)
}

// Wallet shows the balance, the deposit form and recent transactions.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	h.renderWallet(w, r, http.StatusOK, formView[validation.DepositForm]{})
}

func (h *Handler) renderWallet(w http.ResponseWriter, r *http.Request, status int, deposit formView[validation.DepositForm]) {
	cc := h.client(r)
	userID := h.identity(r).ID
	view := walletView{Deposit: deposit}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		view.Balance, err = h.svc.Wallet.Balance(ctx, cc, userID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Transactions, err = h.svc.Wallet.RecentTransactions(ctx, cc, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, status, "wallet", "Wallet", view)
}

// Deposit adds funds to the user's balance.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	cc := h.client(r)
	form := validation.DepositForm{Amount: strings.TrimSpace(r.PostFormValue("amount"))}

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			h.renderWallet(w, r, status, formView[validation.DepositForm]{
				Form:   form,
				Errors: fieldErrors(err),
				Error:  message,
			})
		})
	}

	if err := h.validator.Validate(form); err != nil {
		rerender(err)
		return
	}
	amount, err := form.Value()
	if err != nil {
		rerender(err)
		return
	}

	end, err := cc.Forms.Begin("deposit")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	balance, err := h.svc.Wallet.Deposit(r.Context(), cc, h.identity(r).ID, amount)
	if err != nil {
		rerender(err)
		return
	}
	redirect(w, r, "/wallet", fmt.Sprintf("Deposited %s. Your balance is now %s.", model.FormatMoney(amount), model.FormatMoney(balance)))
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

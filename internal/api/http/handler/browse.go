package handler

import (
	"fmt"
	"net/http"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/service"
)

type browseView struct {
	Query    service.BrowseQuery
	Listings []model.Listing
}

type detailView struct {
	Listing  model.Listing
	SignedIn bool
	Own      bool
	Error    string
}

// Home shows the marketplace rankings.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	highlights, err := h.svc.Activity.Highlights(r.Context(), h.client(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "home", "Flavour Market", highlights)
}

// Browse lists the purchasable listings of one category, filtered and sorted by the query string.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	q := service.ParseBrowseQuery(r.URL.Query())

	rows, err := h.svc.Listings.ByCategory(r.Context(), h.client(r), q.Category)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "browse", "Browse flavours", browseView{
		Query:    q,
		Listings: service.FilterAndSort(rows, q),
	})
}

func (h *Handler) Listing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	listing, err := h.svc.Listings.Get(r.Context(), h.client(r), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "listing", listing.Title, h.detailView(r, listing))
}

func (h *Handler) detailView(r *http.Request, listing model.Listing) detailView {
	identity := h.identity(r)
	return detailView{
		Listing:  listing,
		SignedIn: identity != nil,
		Own:      identity != nil && identity.ID == listing.SellerID,
	}
}

// Purchase buys one unit of the listing as the signed-in user.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	cc := h.client(r)

	listing, err := h.svc.Listings.Get(r.Context(), cc, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			view := h.detailView(r, listing)
			view.Error = message
			h.render(w, r, status, "listing", listing.Title, view)
		})
	}

	end, err := cc.Forms.Begin("purchase")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	if err := h.svc.Purchase.Buy(r.Context(), cc, h.identity(r).ID, listing.ID, listing.Category); err != nil {
		if fresh, reloadErr := h.svc.Listings.Reload(r.Context(), cc, listing.ID); reloadErr == nil {
			listing = fresh
		}
		rerender(err)
		return
	}
	redirect(w, r, fmt.Sprintf("/browse/%d", listing.ID), fmt.Sprintf("You bought %s. Enjoy!", listing.Title))
}

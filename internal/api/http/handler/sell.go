package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/service"
	"github.com/dtroode/flavourmarket/internal/validation"
)

const (
	maxImageSize    = 5 << 20
	maxFormOverhead = 1 << 20
)

type listingFormView struct {
	formView[validation.ListingForm]
	Action         string
	UploadsEnabled bool
}

type sellView struct {
	Listings []model.Listing
	Create   listingFormView
	Error    string
}

type editView struct {
	Listing model.Listing
	Edit    listingFormView
}

func (h *Handler) newListingForm(form validation.ListingForm) listingFormView {
	return listingFormView{
		formView:       formView[validation.ListingForm]{Form: form},
		Action:         "/sell",
		UploadsEnabled: h.svc.Listings.UploadsEnabled(),
	}
}

// Sell shows the seller's own listings and the create form.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.renderSell(w, r, http.StatusOK, sellView{
		Create: h.newListingForm(validation.ListingForm{Category: string(model.DefaultCategory), Stock: 1}),
	})
}

func (h *Handler) renderSell(w http.ResponseWriter, r *http.Request, status int, view sellView) {
	listings, err := h.svc.Listings.BySeller(r.Context(), h.client(r), h.identity(r).ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	view.Listings = listings
	h.render(w, r, status, "sell", "Sell", view)
}

// CreateListing stores a new listing from the create form.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	cc := h.client(r)
	form, image, err := parseListingForm(w, r)

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			view := h.newListingForm(form)
			view.Errors = fieldErrors(err)
			view.Error = message
			h.renderSell(w, r, status, sellView{Create: view})
		})
	}

	if err != nil {
		rerender(err)
		return
	}
	if image != nil {
		defer image.close()
	}
	if err := h.validator.Validate(form); err != nil {
		rerender(err)
		return
	}
	fields, err := form.Fields()
	if err != nil {
		rerender(err)
		return
	}

	end, err := cc.Forms.Begin("listing")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	listing, err := h.svc.Listings.Create(r.Context(), cc, h.identity(r).ID, fields, image.service())
	if err != nil {
		rerender(err)
		return
	}
	redirect(w, r, "/sell", fmt.Sprintf("Listing %q created successfully", listing.Title))
}

// EditListing shows the edit form of one of the seller's listings.
func (h *Handler) EditListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	listing, err := h.svc.Listings.Editable(r.Context(), h.client(r), h.identity(r).ID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "edit", "Edit "+listing.Title, h.editView(listing, validation.ListingFormFrom(listing)))
}

func (h *Handler) editView(listing model.Listing, form validation.ListingForm) editView {
	edit := h.newListingForm(form)
	edit.Action = fmt.Sprintf("/sell/edit/%d", listing.ID)
	return editView{Listing: listing, Edit: edit}
}

// UpdateListing saves the edit form and returns to the seller page.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	cc := h.client(r)
	sellerID := h.identity(r).ID

	listing, err := h.svc.Listings.Editable(r.Context(), cc, sellerID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	form, image, err := parseListingForm(w, r)
	if form.ImageURL == "" && image == nil {
		// keeping the current image is allowed on edit
		form.ImageURL = listing.ImageURL
	}

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			view := h.editView(listing, form)
			view.Edit.Errors = fieldErrors(err)
			view.Edit.Error = message
			h.render(w, r, status, "edit", "Edit "+listing.Title, view)
		})
	}

	if err != nil {
		rerender(err)
		return
	}
	if image != nil {
		defer image.close()
	}
	if err := h.validator.Validate(form); err != nil {
		rerender(err)
		return
	}
	fields, err := form.Fields()
	if err != nil {
		rerender(err)
		return
	}

	end, err := cc.Forms.Begin("listing")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	if _, err := h.svc.Listings.Update(r.Context(), cc, sellerID, id, fields, image.service()); err != nil {
		rerender(err)
		return
	}
	redirect(w, r, "/sell", "Listing updated successfully")
}

func (h *Handler) ActivateListing(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) DeactivateListing(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := idParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	cc := h.client(r)

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			h.renderSell(w, r, status, sellView{
				Create: h.newListingForm(validation.ListingForm{Category: string(model.DefaultCategory), Stock: 1}),
				Error:  message,
			})
		})
	}

	end, err := cc.Forms.Begin("listing-status")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	sellerID := h.identity(r).ID
	var listing model.Listing
	if active {
		listing, err = h.svc.Listings.Activate(r.Context(), cc, sellerID, id)
	} else {
		listing, err = h.svc.Listings.Deactivate(r.Context(), cc, sellerID, id)
	}
	if err != nil {
		rerender(err)
		return
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	redirect(w, r, "/sell", fmt.Sprintf("Listing %q %s", listing.Title, state))
}

// upload is an image file posted with the listing form.
type upload struct {
	image  service.Image
	closer func() error
}

func (u *upload) service() *service.Image {
	if u == nil {
		return nil
	}
	return &u.image
}

func (u *upload) close() {
	_ = u.closer()
}

// parseListingForm reads the listing form fields and the optional image file.
func parseListingForm(w http.ResponseWriter, r *http.Request) (validation.ListingForm, *upload, error) {
	var form validation.ListingForm

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+maxFormOverhead)
		if err := r.ParseMultipartForm(maxImageSize); err != nil {
			return form, nil, validation.FieldErrors{"image": "Image must be smaller than 5 MB."}
		}
	} else if err := r.ParseForm(); err != nil {
		return form, nil, validation.FieldErrors{"title": "The form could not be read."}
	}

	form = validation.ListingForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Category:    r.PostFormValue("category"),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
		ImageURL:    strings.TrimSpace(r.PostFormValue("image_url")),
	}
	form.Stock, _ = strconv.Atoi(strings.TrimSpace(r.PostFormValue("stock")))

	if r.MultipartForm == nil {
		return form, nil, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, fmt.Errorf("failed to read image: %w", err)
	}
	if header.Size == 0 {
		_ = file.Close()
		return form, nil, nil
	}

	form.HasUpload = true
	return form, &upload{
		image: service.Image{
			Reader:      file,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Filename:    header.Filename,
		},
		closer: file.Close,
	}, nil
}

package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dtroode/flavourmarket/internal/model"
)

type SignupForm struct {
	FirstName       string `form:"first_name" validate:"required"`
	LastName        string `form:"last_name" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

func (f SignupForm) Params() model.SignUpParams {
	return model.SignUpParams{
		Email:     f.Email,
		Password:  f.Password,
		FirstName: f.FirstName,
		LastName:  f.LastName,
	}
}

type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
}

// ListingForm is the sell and edit form. Either ImageURL or an uploaded file must be present.
type ListingForm struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	Category    string `form:"category" validate:"required,oneof=chocolate fruity tropical caramel"`
	Price       string `form:"price" validate:"required,positive_decimal"`
	ImageURL    string `form:"image_url" validate:"omitempty,url"`
	Stock       int    `form:"stock" validate:"min=1"`
	HasUpload   bool   `form:"-"`
}

func listingImage(sl validator.StructLevel) {
	f := sl.Current().Interface().(ListingForm)
	if f.ImageURL == "" && !f.HasUpload {
		sl.ReportError(f.ImageURL, "image_url", "ImageURL", "required_without_upload", "")
	}
}

// Fields converts a validated form into listing fields.
func (f ListingForm) Fields() (model.ListingFields, error) {
	category, err := model.ParseCategory(f.Category)
	if err != nil {
		return model.ListingFields{}, err
	}
	price, err := parseMoney(f.Price)
	if err != nil {
		return model.ListingFields{}, fmt.Errorf("failed to parse price: %w", err)
	}

	return model.ListingFields{
		Title:       f.Title,
		Description: f.Description,
		Category:    category,
		Price:       price,
		Stock:       f.Stock,
		ImageURL:    f.ImageURL,
	}, nil
}

// ListingFormFrom prefills the edit form with a listing's current values.
func ListingFormFrom(l model.Listing) ListingForm {
	return ListingForm{
		Title:       l.Title,
		Description: l.Description,
		Category:    string(l.Category),
		Price:       l.Price.StringFixed(2),
		ImageURL:    l.ImageURL,
		Stock:       l.Stock,
	}
}

type DepositForm struct {
	Amount string `form:"amount" validate:"required,positive_decimal"`
}

func (f DepositForm) Value() (decimal.Decimal, error) {
	amount, err := parseMoney(f.Amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse amount: %w", err)
	}
	return amount, nil
}

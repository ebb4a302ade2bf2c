// Package validation holds the storefront's form schemas and turns validator
// failures into per-field messages the templates render next to each input.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldErrors maps a form field name to the message shown beside it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

var messages = map[string]string{
	"first_name":                "First name is required",
	"last_name":                 "Last name is required",
	"email.required":            "Email is required",
	"email":                     "Invalid email address",
	"password.required":         "Password is required",
	"password":                  "Password must be at least 8 characters",
	"confirm_password.required": "Please confirm your password",
	"confirm_password":          "Passwords do not match",
	"title":                     "Title is required",
	"description":               "Description is required",
	"category":                  "Please select a valid category",
	"price":                     "Price must be greater than 0",
	"image_url":                 "Invalid URL",
	"stock":                     "Stock must be greater than 0",
	"amount":                    "Amount must be greater than 0",
}

func message(field, tag string) string {
	if m, ok := messages[field+"."+tag]; ok {
		return m
	}
	if m, ok := messages[field]; ok {
		return m
	}
	return "Invalid value"
}

// Validator checks form structs against their validate tags.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("positive_decimal", positiveDecimal)
	v.RegisterStructValidation(listingImage, ListingForm{})

	return &Validator{validate: v}
}

// Validate returns nil for a valid form and FieldErrors otherwise.
func (v *Validator) Validate(form any) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe.Field(), fe.Tag())
	}
	return fields
}

func positiveDecimal(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

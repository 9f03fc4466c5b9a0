package cart

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	if err != nil {
		panic(fmt.Sprintf("cart: register finite validation: %v", err))
	}
	return v
}

func normalizeProduct(p Product) Product {
	p.ProductID = strings.TrimSpace(p.ProductID)
	p.Title = strings.TrimSpace(p.Title)
	p.Image = strings.TrimSpace(p.Image)
	return p
}

func (s *Store) validateProduct(p Product) error {
	err := s.validate.Struct(p)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product")
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "finite":
		return "must be a finite number"
	case "gte":
		if fe.Field() == "stock" {
			return "product is out of stock"
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

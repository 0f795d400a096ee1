// Package validation plugs go-playground/validator into Echo and turns its
// field errors into the API's VALIDATION_ERROR payload.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the storefront's custom rules registered:
// "phone" and "shopemail".  Field names in errors are taken from json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return s == "" || phonePattern.MatchString(s)
	})
	_ = v.RegisterValidation("shopemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{v: v}
}

// Validate runs struct validation and returns an *apperr.Error with
// per-field details on failure.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, message(fe))
	}
	return apperr.Validation("Invalid input data", details)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s", field, fe.Param())
	case "email", "shopemail":
		return "Invalid email format"
	case "phone":
		return "Invalid phone number format"
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

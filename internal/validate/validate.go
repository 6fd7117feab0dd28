// Package validate builds the struct validator shared by configuration and
// list arguments.
package validate

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cyp0633/eventcal/timezone"
)

// New creates a validator with the eventcal rules registered:
//
//	tzspec    "UTC", an IANA zone name or a manual offset such as "UTC+5.75"
//	duration  a non-negative Go duration such as "15m"
func New() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("tzspec", validateTZSpec)
	v.RegisterValidation("duration", validateDuration)
	return v
}

func validateTZSpec(fl validator.FieldLevel) bool {
	return timezone.IsValid(fl.Field().String())
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

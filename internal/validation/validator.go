// Package validation checks request payloads at the HTTP boundary.
package validation

import (
	"reflect" // Struct field names
	"regexp"  // Scan code format
	"strings" // Tag parsing

	"retail_pos/internal/domain" // Roles

	validatorv10 "github.com/go-playground/validator/v10"
)

var scanCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// New returns a validator with the custom tags used by request payloads:
// "scancode" for barcodes and "role" for user roles.
func New() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())

	// report fields under their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("scancode", func(fl validatorv10.FieldLevel) bool {
		return scanCodePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validatorv10.FieldLevel) bool {
		return domain.ValidRole(fl.Field().String())
	})
	return v
}

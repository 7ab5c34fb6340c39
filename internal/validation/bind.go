package validation

import (
	"errors" // Error classification
	"fmt"    // Messages

	"retail_pos/internal/apperr" // Error taxonomy

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds the JSON body into out and runs validation.
// On failure it writes the 400 response and returns the error so the handler
// can short-circuit.
func BindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.ErrInvalidRequest, err))
		return err
	}
	if err := v.Struct(out); err != nil {
		apperr.Respond(c, apperr.Validation(Message(err)))
		return err
	}
	return nil
}

// Message turns the first validation failure into a client message
func Message(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return apperr.ErrInvalidRequest.Message
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %q field is required.", fe.Field())
	case "email":
		return "Please use a valid email address"
	case "min":
		return fmt.Sprintf("The %q field must have at least %s characters or items.", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("The %q field is out of range.", fe.Field())
	default:
		return fmt.Sprintf("The %q field is invalid.", fe.Field())
	}
}

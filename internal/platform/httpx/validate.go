package httpx

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-assist/meridian/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation on a decoded request body and folds
// the field errors into one VALIDATION_ERROR.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.WrapError(shared.KindValidation, "invalid request", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag()))
	}
	return shared.Validationf("%s", strings.Join(parts, "; "))
}

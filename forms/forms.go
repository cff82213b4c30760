// Package forms reads and validates HTML form submissions.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/user/socialapp/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their form name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Value returns the trimmed form value for key, from the body or the query.
func Value(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// InvalidFormMessage is the single message shown for any rejected form. The
// failing field is recorded in the wrapped cause only.
const InvalidFormMessage = "Please fill in every field with a valid value."

// Validate checks v against its validate tags. The returned error is a
// validation AppError whose cause names the first failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.NewInternalError("failed to validate form", err)
	}

	fe := fieldErrs[0]
	return apperror.NewValidationError(InvalidFormMessage, fmt.Errorf("field %s failed %s: %w", fe.Field(), fe.Tag(), err))
}

// Age converts a validated age field.
func Age(s string) (int, error) {
	age, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperror.NewValidationError(InvalidFormMessage, fmt.Errorf("field age is not a whole number: %w", err))
	}
	if age < 0 {
		return 0, apperror.NewValidationError(InvalidFormMessage, fmt.Errorf("field age is negative: %d", age))
	}
	return age, nil
}

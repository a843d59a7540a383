package reservations

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateInput(in CheckoutInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i > 0 {
			field = field[:i]
		}
		return &bookings.ValidationError{Field: field, Reason: fmt.Sprintf("failed %q check", fe.Tag())}
	}
	return &bookings.ValidationError{Reason: err.Error()}
}

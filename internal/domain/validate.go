package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("event_kind", func(fl validator.FieldLevel) bool {
			return EventKind(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Validate checks a request struct against its validate tags. Any failure is
// reported as ErrInvalidRequest naming the first offending field.
func Validate(req any) error {
	err := validatorInstance().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
		case "event_kind":
			return fmt.Errorf("%w: %s has unsupported event type %q", ErrInvalidRequest, field, fe.Value())
		default:
			return fmt.Errorf("%w: %s is invalid (%s)", ErrInvalidRequest, field, fe.Tag())
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

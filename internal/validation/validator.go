package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"eventpilot/internal/models"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every request validation failure.
var ErrInvalid = errors.New("validation failed")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("saudiphone", func(fl validator.FieldLevel) bool {
			return ValidSaudiPhone(fl.Field().String())
		})
		validate.RegisterValidation("sponsorshiptype", func(fl validator.FieldLevel) bool {
			return models.IsSponsorshipType(fl.Field().String())
		})
		validate.RegisterValidation("valetstatus", func(fl validator.FieldLevel) bool {
			return models.ValetStatus(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and reports every failing
// field in one error wrapping ErrInvalid.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s: %s", fieldErr.Field(), fieldErr.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username_format", validateUsernameFormat)
	_ = v.RegisterValidation("password_bytes", validatePasswordBytes)
	return v
}

// validateUsernameFormat accepts letters, digits, underscores, dots and hyphens.
func validateUsernameFormat(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if username == "" {
		return false
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

// validatePasswordBytes enforces bcrypt's limit, which counts bytes rather
// than characters.
func validatePasswordBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= auth.MaxPasswordBytes
}

// validateRequest returns a BadRequest describing every failed field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.BadRequest(err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatFieldError(fe))
	}
	return apperr.BadRequest(strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "password_bytes":
		return fmt.Sprintf("%s must be at most %d bytes", field, auth.MaxPasswordBytes)
	case "username_format":
		return fmt.Sprintf("%s can only contain letters, numbers, underscores, dots and hyphens", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

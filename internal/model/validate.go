package model

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// egyptianPhone matches local mobile numbers: 01 followed by nine digits.
var egyptianPhone = regexp.MustCompile(`^01\d{9}$`)

// messages overrides the generic message for a field/tag pair.
var messages = map[string]string{
	"details.required":    "Details are required",
	"phone.egphone":       "Phone must be a valid Egyptian number",
	"email.email":         "Please enter a valid email",
	"password.min":        "Password must be at least 6 characters",
	"rePassword.eqfield":  "Passwords do not match",
	"rePassword.required": "Please confirm your password",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("egphone", func(fl validator.FieldLevel) bool {
		return egyptianPhone.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks s against its validate tags and reports the first failing
// field as a validation error with a user-facing message.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("", err.Error())
	}
	fe := verrs[0]
	return NewValidationError(fe.Field(), messageFor(fe))
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	label := fe.Field()
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email"
	default:
		return label + " is invalid"
	}
}

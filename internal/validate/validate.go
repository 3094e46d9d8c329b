// Package validate checks request payloads against declared field rules
// before they reach any persistence call.
//
// Rules are declared with `validate` struct tags. The caller-facing message
// of a field comes from its `msg` tag, and the reported field name from its
// `json` tag.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devlink/apiserver/internal/apperr"
)

// DateLayouts are the accepted spellings of a calendar date.
var DateLayouts = []string{"2006-01-02", time.RFC3339}

var std = New()

// Validator wraps a configured validator.Validate.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", notBlank)
	_ = v.RegisterValidation("date", isDate)
	return &Validator{v: v}
}

// Struct validates s and returns nil or an *apperr.Error listing every
// violated field.
func Struct(s any) error {
	return std.Struct(s)
}

func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return apperr.Internal(err)
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return apperr.Internal(err)
	}

	typ := reflect.TypeOf(s)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	fields := make([]apperr.FieldError, 0, len(violations))
	for _, violation := range violations {
		fields = append(fields, apperr.FieldError{
			Field:   violation.Field(),
			Message: message(typ, violation),
		})
	}
	return apperr.Validation(fields...)
}

// ParseDate parses a value accepted by the "date" rule.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range DateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

func message(typ reflect.Type, violation validator.FieldError) string {
	if typ.Kind() == reflect.Struct {
		if field, ok := typ.FieldByName(violation.StructField()); ok {
			if msg := field.Tag.Get("msg"); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("%s is invalid", violation.Field())
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return field.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !field.IsNil()
	default:
		return field.IsValid() && !field.IsZero()
	}
}

func isDate(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	if strings.TrimSpace(field.String()) == "" {
		return true
	}
	_, err := ParseDate(field.String())
	return err == nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/addrfmt/internal/domain"
)

// newValidator reports struct fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes a single JSON document from the request body into dst
// and validates it.
func decodeJSON(r *http.Request, v *validator.Validate, op string, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is empty")
		default:
			return domain.Invalid(op, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}

	return validationError(op, v.Struct(dst))
}

// validationError converts validator output into a domain.ValidationError.
func validationError(op string, err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid(op, err.Error())
	}

	var out error
	for _, fe := range verrs {
		// Namespace is "<type>.<json path>"; drop the type.
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		if field == "" {
			field = fe.Field()
		}
		out = domain.AddFieldError(out, field, fieldMessage(fe))
	}
	if ve, ok := out.(*domain.ValidationError); ok {
		ve.Op = op
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is missing", fe.Field(), strings.ToLower(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", fe.Field(), strings.ToLower(fe.Param()))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	case "alpha":
		return fmt.Sprintf("%s must contain letters only", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

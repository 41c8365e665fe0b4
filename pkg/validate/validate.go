// Package validate runs struct-tag validation and maps failures onto coded errors.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Struct validates dest and returns a VALIDATION_ERROR whose details map
// field names to messages.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err, "")
	}
	return nil
}

// Fields validates dest and returns the per-field messages keyed under prefix,
// for callers that aggregate several structs into one error.
func Fields(dest any, prefix string) map[string]string {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{prefix: err.Error()}
	}
	return detailsFrom(errs, prefix)
}

func formatValidationErrors(err error, prefix string) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(detailsFrom(errs, prefix))
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func detailsFrom(errs validator.ValidationErrors, prefix string) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldPath(prefix, fieldErr)] = validationMessage(fieldErr)
	}
	return details
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(prefix string, fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	if prefix == "" {
		return ns
	}
	return prefix + "." + ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

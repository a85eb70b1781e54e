// Package parser validates and normalizes raw flag values into docker CLI arguments.
package parser

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	dterrors "dtools/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report fields by their command-line flag name
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("flag"); name != "" {
			return name
		}
		return field.Name
	})
}

// ValidateOptions checks the struct tags of a BuildOptions or RunOptions value
// and returns the first violation as a typed error.
func ValidateOptions(opts any) error {
	if err := validate.Struct(opts); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// RequireFlag fails like a "required" struct tag when value is empty.
func RequireFlag(name, value string) error {
	if value == "" {
		return missingFlag(name)
	}
	return nil
}

func missingFlag(name string) error {
	return dterrors.NewFormatError(
		fmt.Sprintf("Flag '--%s' is required", name),
		"",
		fmt.Sprintf("Pass --%s on the command line", name),
		fmt.Errorf("missing required flag --%s", name),
	)
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}
	return formatFieldError(validationErrors[0])
}

// formatFieldError maps a single validation failure onto the error taxonomy.
func formatFieldError(e validator.FieldError) error {
	field := e.Field()
	value := fmt.Sprint(e.Value())

	switch e.Tag() {
	case "required":
		return missingFlag(field)
	case "file":
		return dterrors.NewNotFoundError(
			fmt.Sprintf("'%s': file not found", value),
			fmt.Sprintf("--%s must name an existing file", field),
			"Check the path or pass --file explicitly",
			fmt.Errorf("file %q not found", value),
		)
	case "dir":
		return dterrors.NewNotFoundError(
			fmt.Sprintf("'%s' is not a directory", value),
			fmt.Sprintf("--%s must name an existing directory", field),
			"",
			fmt.Errorf("directory %q not found", value),
		)
	default:
		return dterrors.NewFormatError(
			fmt.Sprintf("Flag '--%s' failed validation (%s)", field, e.Tag()),
			"",
			"",
			fmt.Errorf("invalid value %q for --%s", value, field),
		)
	}
}

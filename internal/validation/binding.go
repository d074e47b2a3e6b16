// Package validation registers the custom struct tags used when gin binds
// request bodies.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagViolationType accepts a string only if it is one of the configured
// violation types.
const TagViolationType = "violation_type"

// Register installs the custom tags on gin's default validator. Calling it again
// replaces the accepted violation types.
func Register(violationTypes []string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v, violationTypes)
}

// RegisterOn installs the custom tags on v
func RegisterOn(v *validator.Validate, violationTypes []string) error {
	allowed := slices.Clone(violationTypes)
	err := v.RegisterValidation(TagViolationType, func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	})
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", TagViolationType, err)
	}
	return nil
}

// Describe renders validation errors as "field: tag" pairs for logging
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

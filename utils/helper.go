package utils

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

// ParseQuantity coerces a spreadsheet cell to an integer quantity.
// Tries a direct integer parse first, then a decimal parse truncated
// to its integer part ("12.0" -> 12). Returns false when neither works.
func ParseQuantity(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return 0, false
	}
	return int(dec.IntPart()), true
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

package validation

import (
	"errors"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator shared by the API handlers and the
// worker's message validation.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// ValidatePatchPayload checks the shape constraints of an otherwise free-form
// patch body: the document body must be an object, and "data", when present,
// must itself be an object so the shallow merge has something to merge.
func ValidatePatchPayload(payload map[string]any) error {
	if payload == nil {
		return errors.New("patch payload must be a JSON object")
	}
	if raw, ok := payload["data"]; ok {
		if _, isObject := raw.(map[string]any); !isObject {
			return fmt.Errorf("patch field %q must be an object", "data")
		}
	}
	return nil
}

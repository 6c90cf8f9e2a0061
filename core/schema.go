package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var errUnprocessable = errors.New("invalid request data")

type (
	// Rule is a single field constraint: a validator tag expression applied
	// to the raw decoded value, and whether the field must be present on
	// creation.
	Rule struct {
		Tag      string
		Required bool
	}

	// Schema is the declarative field-constraint table for one resource.
	// It is the single source of truth for both the unknown-field discard
	// pass and per-field validation; anything not keyed here never reaches
	// a handler.
	Schema map[string]Rule
)

// DiscardUnknown removes every key not declared in the schema from body.
// It is idempotent and always runs before any validation pass.
func (s Schema) DiscardUnknown(body map[string]interface{}) map[string]interface{} {
	for key := range body {
		if _, known := s[key]; !known {
			delete(body, key)
		}
	}
	return body
}

// ValidateCreate applies the full rule table to a creation body: every
// required field must be present and every present field must pass its rule.
// On failure it returns a *ValidationError listing all offending fields.
func (s Schema) ValidateCreate(body map[string]interface{}) error {
	s.DiscardUnknown(body)

	var flds []FieldError
	for name, rule := range s {
		val, present := body[name]
		if !present {
			if rule.Required {
				flds = append(flds, FieldError{Field: name, Error: requiredText})
			}
			continue
		}
		if msg := checkRule(val, rule); msg != "" {
			flds = append(flds, FieldError{Field: name, Error: msg})
		}
	}
	if len(flds) > 0 {
		return NewValidationError(errUnprocessable, flds...)
	}
	return nil
}

// SanitizePatch applies the rule table to a partial-update body: fields
// failing their rule are dropped rather than rejected. An empty result means
// there is nothing to update and callers short-circuit with no content.
func (s Schema) SanitizePatch(body map[string]interface{}) map[string]interface{} {
	s.DiscardUnknown(body)

	for name, val := range body {
		if checkRule(val, s[name]) != "" {
			delete(body, name)
		}
	}
	return body
}

// checkRule validates a single raw value against a rule, returning a
// human-readable message or "" when valid. Validate.Var panics when a tag
// meets a type it cannot handle (e.g. email on a JSON number); that counts
// as an invalid value, not a server fault.
func checkRule(val interface{}, rule Rule) (msg string) {
	if val == nil {
		return requiredText
	}
	defer func() {
		if recover() != nil {
			msg = invalidText
		}
	}()
	err := Validate.Var(val, rule.Tag)
	if err == nil {
		return ""
	}
	if vErrs, ok := err.(validator.ValidationErrors); ok && len(vErrs) > 0 {
		return vErrs[0].Translate(Translator)
	}
	return err.Error()
}

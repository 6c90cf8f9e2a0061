package core

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	nonNumStrTag  = "nonnumstr"
	nonNumStrText = "a non-empty, non-numeric text value is required"

	intStrTag  = "intstr"
	intStrText = "a base-10 integer is required"

	dateStrTag  = "datestr"
	dateStrText = "a date formatted as YYYY-MM-DD or YYYY/MM/DD is required"
	// month 01-12 and day 01-31; no further calendar check
	dateStrRegex = regexp.MustCompile(`^\d{4}(-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])|/(0[1-9]|1[0-2])/(0[1-9]|[12]\d|3[01]))$`)

	objectIDTag   = "objectid"
	objectIDText  = "a valid resource id is required"
	objectIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

	objectIDListTag  = "objectids"
	objectIDListText = "a list of valid resource ids is required"

	roleNumTag  = "rolenum"
	roleNumText = "role must be one of 0 (student), 1 (professor) or 2 (secretary)"

	requiredTag  = "required"
	requiredText = "this field is required"
	invalidText  = "this field is invalid"
)

func init() {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	Translator, _ = uni.GetTranslator("en")

	Validate = validator.New()
	_ = entranslations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = Validate.RegisterValidation(nonNumStrTag, nonNumStrValidation)
	RegisterCustomTranslation(Validate, Translator, nonNumStrTag, nonNumStrText)

	_ = Validate.RegisterValidation(intStrTag, intStrValidation)
	RegisterCustomTranslation(Validate, Translator, intStrTag, intStrText)

	_ = Validate.RegisterValidation(dateStrTag, dateStrValidation)
	RegisterCustomTranslation(Validate, Translator, dateStrTag, dateStrText)

	_ = Validate.RegisterValidation(objectIDTag, objectIDValidation)
	RegisterCustomTranslation(Validate, Translator, objectIDTag, objectIDText)

	_ = Validate.RegisterValidation(objectIDListTag, objectIDListValidation)
	RegisterCustomTranslation(Validate, Translator, objectIDListTag, objectIDListText)

	_ = Validate.RegisterValidation(roleNumTag, roleNumValidation)
	RegisterCustomTranslation(Validate, Translator, roleNumTag, roleNumText)

	RegisterCustomTranslation(Validate, Translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators
//
// Request bodies are decoded into map[string]interface{}, so these validators
// see whatever encoding/json produced: string, float64, bool, []interface{}.

// nonNumStrValidation requires a non-blank string that does not parse as a number.
func nonNumStrValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	return true
}

// intStrValidation requires a base-10 integer, given either as a JSON number
// with no fractional part or as a digit string.
func intStrValidation(fl validator.FieldLevel) bool {
	switch field := fl.Field(); field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	case reflect.Float32, reflect.Float64:
		f := field.Float()
		return f == math.Trunc(f)
	case reflect.String:
		_, err := strconv.ParseInt(strings.TrimSpace(field.String()), 10, 64)
		return err == nil
	}
	return false
}

func dateStrValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return dateStrRegex.MatchString(fl.Field().String())
}

// objectIDValidation checks the 24-hex-character content identifier syntax.
func objectIDValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return objectIDRegex.MatchString(fl.Field().String())
}

func objectIDListValidation(fl validator.FieldLevel) bool {
	list, ok := fl.Field().Interface().([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		id, ok := item.(string)
		if !ok || !objectIDRegex.MatchString(id) {
			return false
		}
	}
	return true
}

// roleNumValidation restricts role values to the [0, 2] range.
func roleNumValidation(fl validator.FieldLevel) bool {
	var n float64
	switch field := fl.Field(); field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = float64(field.Int())
	case reflect.Float32, reflect.Float64:
		n = field.Float()
	default:
		return false
	}
	return n == math.Trunc(n) && n >= 0 && n <= 2
}

// Package validation wraps go-playground/validator with English messages and
// defines the error type returned for malformed input.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error reports input that failed validation.
type Error struct {
	Err    error
	Fields []FieldError
}

// New wraps err as a validation error.
func New(err error, flds ...FieldError) error {
	return &Error{Err: err, Fields: flds}
}

// Newf builds a validation error from a message.
func Newf(msg string, flds ...FieldError) error {
	return &Error{Err: errors.New(msg), Fields: flds}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()
	enLocale := en.New()
	translator, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates v using its `validate` tags.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return New(errors.New("invalid input"), flds...)
}

// Validator exposes the shared validator as the HTTP binding engine.
func Validator() *validator.Validate {
	return validate
}

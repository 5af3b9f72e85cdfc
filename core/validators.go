package core

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	futureTag  = "future"
	futureText = "must be a date in the future"

	thumbnailRefTag   = "thumbnailref"
	thumbnailRefText  = "must be a color token (#RRGGBB) or an http(s) URL"
	colorTokenRegex   = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(futureTag, futureValidation)
	RegisterCustomTranslation(validate, translator, futureTag, futureText)

	_ = validate.RegisterValidation(thumbnailRefTag, thumbnailRefValidation)
	RegisterCustomTranslation(validate, translator, thumbnailRefTag, thumbnailRefText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
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

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// futureValidation checks that a time.Time is strictly after now.
func futureValidation(fl validator.FieldLevel) bool {
	if t, ok := fl.Field().Interface().(time.Time); ok {
		return t.After(time.Now())
	}
	return false
}

// thumbnailRefValidation allows either a color token (#RRGGBB) or an absolute http(s) URL.
func thumbnailRefValidation(fl validator.FieldLevel) bool {
	return IsThumbnailRef(fl.Field().String())
}

// IsThumbnailRef reports whether ref is a valid thumbnail reference.
func IsThumbnailRef(ref string) bool {
	if colorTokenRegex.MatchString(ref) {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

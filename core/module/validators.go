package module

import (
	"encoding/json"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	contentKindTag  = "contentkind"
	contentKindText = "invalid content kind"

	jsonObjectTag  = "jsonobject"
	jsonObjectText = "must be a JSON object"
)

// InitValidators registers this domain's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentKindTag, contentKindValidation)
	core.RegisterCustomTranslation(validate, translator, contentKindTag, contentKindText)

	_ = validate.RegisterValidation(jsonObjectTag, jsonObjectValidation)
	core.RegisterCustomTranslation(validate, translator, jsonObjectTag, jsonObjectText)
}

// contentKindValidation checks that the value is one of AllKinds.
func contentKindValidation(fl validator.FieldLevel) bool {
	kind := fl.Field().String()
	for _, k := range AllKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// jsonObjectValidation checks that the raw payload is a JSON object.
// The payload's shape is the sub-editor's business; the wizard only
// refuses values it could not even store.
func jsonObjectValidation(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		if b, bok := fl.Field().Interface().([]byte); bok {
			raw = b
		} else {
			return false
		}
	}
	var obj map[string]interface{}
	// a literal "null" unmarshals without error but leaves obj nil
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

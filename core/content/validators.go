package content

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasa-app/darasa/core"
)

var (
	blockKindTag  = "blockkind"
	blockKindText = "invalid block kind"

	assetKindTag  = "assetkind"
	assetKindText = "invalid asset kind"
)

// RegisterValidators registers the content domain's custom validation tags.
// Call it once on the same validator instance the handlers use, after
// core.InitValidators.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(blockKindTag, blockKindValidation)
	core.RegisterCustomTranslation(validate, translator, blockKindTag, blockKindText)

	_ = validate.RegisterValidation(assetKindTag, assetKindValidation)
	core.RegisterCustomTranslation(validate, translator, assetKindTag, assetKindText)
}

// blockKindValidation checks that the value is one of AllBlockKinds.
func blockKindValidation(fl validator.FieldLevel) bool {
	return BlockKind(fl.Field().String()).Valid()
}

// assetKindValidation checks that the value is a known asset kind.
func assetKindValidation(fl validator.FieldLevel) bool {
	return AssetKind(fl.Field().String()).Valid()
}

package schoolyear

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator(enLocale.Locale())

	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

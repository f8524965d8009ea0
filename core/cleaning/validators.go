package cleaning

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/simchatzion/ledger/core"
)

const (
	monthTag  = "month"
	monthText = "must be a month, i.e. YYYY-MM"
)

// InitValidators registers the ledger validation tags, on top of core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(monthTag, monthValidation)
	core.RegisterCustomTranslation(validate, translator, monthTag, monthText)
}

// monthValidation accepts strings ParseMonth can parse; empty strings are left to `required`.
func monthValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := ParseMonth(s)
	return err == nil
}

package cleaning

import (
	"context"
	"strings"
)

type langKey struct{}

// WithLang sets the language user facing messages are built in.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, NormalizeLang(lang))
}

// LangFrom returns the context language, Hebrew by default.
func LangFrom(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok {
		return lang
	}
	return LangHebrew
}

// NormalizeLang maps an Accept-Language like value to one of the supported languages.
func NormalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), LangEnglish) {
		return LangEnglish
	}
	return LangHebrew
}

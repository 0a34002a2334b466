package i18n

import (
	"context"
	"net/http"
	"strings"
)

// DefaultLocale is used for mail sent outside a request, such as content
// reports to the moderation inbox.
const DefaultLocale = "en"

var supportedLocales = []string{"en", "de"}

func supported(lang string) bool {
	for _, l := range supportedLocales {
		if l == lang {
			return true
		}
	}
	return false
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the first supported primary language tag of an
// Accept-Language value. Quality weights are not ranked.
func NormalizeLocale(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(tag)), "-")
		if lang != "" && supported(lang) {
			return lang
		}
	}
	return DefaultLocale
}

type localeKey struct{}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, NormalizeLocale(locale))
}

func LocaleFromContext(ctx context.Context) string {
	if v, _ := ctx.Value(localeKey{}).(string); v != "" {
		return v
	}
	return DefaultLocale
}

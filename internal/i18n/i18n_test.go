package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"":                     "en",
		"de":                   "de",
		"de-AT,de;q=0.9":       "de",
		"fr-FR, de;q=0.8":      "de",
		"fr-FR,es;q=0.8":       "en",
		"EN-us":                "en",
		" ; q=0.1, de-CH;q=.5": "de",
	}
	for header, want := range cases {
		assert.Equal(t, want, NormalizeLocale(header), header)
	}
}

func TestLocaleContext(t *testing.T) {
	assert.Equal(t, DefaultLocale, LocaleFromContext(context.Background()))
	assert.Equal(t, "de", LocaleFromContext(WithLocale(context.Background(), "de-DE")))
}

func TestUnknownLocaleFallsBack(t *testing.T) {
	c := PasswordResetEmail("xx", "", "https://x/reset", 24)
	assert.Equal(t, "Username or password reset request", c.Subject)
	assert.Contains(t, c.Text, "Hi there!")
	assert.Contains(t, c.Text, "24 hour(s)")
}

package auth

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

const maxReportCommentLength = 300

var reportTypes = map[string]struct{}{
	"post":    {},
	"comment": {},
	"reply":   {},
}

func validUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

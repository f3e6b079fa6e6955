package validators

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,19}$`)
)

func IsEmailValid(email string) bool {
	return emailRe.MatchString(strings.TrimSpace(email))
}

func IsPhoneValid(phone string) bool {
	return phoneRe.MatchString(strings.TrimSpace(phone))
}

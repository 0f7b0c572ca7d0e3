// Package inputval holds the server-side form rules applied before any call
// reaches the identity provider.
package inputval

import (
	"strings"
	"unicode/utf8"
)

const (
	// PasswordMinLength matches the identity provider's own minimum.
	PasswordMinLength = 6
	// DisplayNameMinLength applies only when a display name is given.
	DisplayNameMinLength = 2
)

// IsValidEmail reports whether s is a bare addr-spec (no display name, no
// surrounding whitespace). Single-label domains are allowed.
func IsValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return validLocal(s[:at]) && validDomain(s[at+1:])
}

// IsValidPassword applies the minimum length rule.
func IsValidPassword(p string) bool {
	return utf8.RuneCountInString(p) >= PasswordMinLength
}

// IsValidDisplayName checks an optional display name. Empty is valid.
func IsValidDisplayName(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || utf8.RuneCountInString(name) >= DisplayNameMinLength
}

func validLocal(local string) bool {
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	for _, r := range local {
		if isAlnum(r) || strings.ContainsRune(".!#$%&'*+/=?^_`{|}~-", r) {
			continue
		}
		return false
	}
	return true
}

func validDomain(domain string) bool {
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !isAlnum(r) && r != '-' {
				return false
			}
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

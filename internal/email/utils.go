// Package email provides address checks shared by the host list and the
// participants report
package email

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9._-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	if strings.TrimSpace(email) != email {
		return false
	}
	// RFC 5321 limit
	if len(email) > 320 {
		return false
	}
	return emailRegex.MatchString(email)
}

// Domain returns the lowercased part after the @, or "" for invalid addresses
func Domain(email string) string {
	if !IsValidEmail(email) {
		return ""
	}
	at := strings.LastIndex(email, "@")
	return strings.ToLower(email[at+1:])
}

// Normalize lowercases and trims an address for comparisons
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Equal compares two addresses case-insensitively
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// InDomains reports whether the address belongs to one of domains. A domain
// may be written with or without the leading @.
func InDomains(email string, domains []string) bool {
	domain := Domain(email)
	if domain == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" && d == domain {
			return true
		}
	}
	return false
}

// ReportFilter returns the address a participants report must be restricted
// to: "" (no filter) for staff, else the viewer's own address.
func ReportFilter(viewer string, staff bool, staffDomains []string) string {
	if staff || InDomains(viewer, staffDomains) {
		return ""
	}
	return Normalize(viewer)
}

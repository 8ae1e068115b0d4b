package services

import "strings"

const (
	countryCode        = "254"
	internationalPhone = 12
	localPhone         = 10
)

var localPrefixes = []string{"07", "01"}

// NormalizePhone rewrites a local number (07XXXXXXXX, 01XXXXXXXX) to the
// international 254XXXXXXXXX form. International numbers pass through unchanged;
// anything else is rejected.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !isDigits(phone) {
		return "", validationError("invalid phone number %q", phone)
	}
	for _, prefix := range localPrefixes {
		if strings.HasPrefix(phone, prefix) {
			if len(phone) != localPhone {
				return "", validationError("invalid phone number %q", phone)
			}
			return countryCode + phone[1:], nil
		}
	}
	if strings.HasPrefix(phone, countryCode) && len(phone) == internationalPhone {
		return phone, nil
	}
	return "", validationError("invalid phone number %q: use 07XXXXXXXX, 01XXXXXXXX or 254XXXXXXXXX", phone)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

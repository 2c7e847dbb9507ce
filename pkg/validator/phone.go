package validator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPhone    = errors.New("phone number cannot be empty")
	ErrInvalidFormat = errors.New("phone number can only contain digits")
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")
	ErrInvalidPrefix = errors.New("phone number must start with a mobile prefix (070-072, 074-079)")

	ErrInternationalLength     = errors.New("international phone number must have 8 to 15 digits")
	ErrInternationalNotAllowed = errors.New("only Sri Lankan mobile numbers are accepted")
)

// mobilePrefixes are the Sri Lankan mobile operator prefixes accepted for passenger contact numbers
var mobilePrefixes = map[string]bool{
	"070": true, "071": true, "072": true,
	"074": true, "075": true, "076": true,
	"077": true, "078": true, "079": true,
}

// separators are stripped before validation
var separators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "+", "")

const localCountryCode = "94"

// PhoneValidator normalizes passenger phone numbers. Local mobiles become the
// 10 digit form; other countries, when allowed, become +<digits>.
type PhoneValidator struct {
	international bool
}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator(allowInternational bool) *PhoneValidator {
	return &PhoneValidator{international: allowInternational}
}

// Validate returns the normalized form of phone (e.g. 0771234567 or +447911123456)
// or one of the Err* values. Separators and a 94 country code are accepted.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	digits := separators.Replace(phone)
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidFormat
		}
	}

	foreign := strings.HasPrefix(phone, "+") || strings.HasPrefix(digits, "00")
	digits = strings.TrimPrefix(digits, "00")
	if foreign && !strings.HasPrefix(digits, localCountryCode) {
		if !v.international {
			return "", ErrInternationalNotAllowed
		}
		if len(digits) < 8 || len(digits) > 15 {
			return "", ErrInternationalLength
		}
		return "+" + digits, nil
	}

	local := v.Sanitize(digits)
	if len(local) != 10 {
		return "", ErrInvalidLength
	}
	if !mobilePrefixes[local[:3]] {
		return "", ErrInvalidPrefix
	}
	return local, nil
}

// Sanitize strips separators and rewrites a leading 94 country code to 0
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = separators.Replace(phone)
	if len(phone) == 11 && strings.HasPrefix(phone, localCountryCode) {
		phone = "0" + phone[2:]
	}
	return phone
}

// Format renders a local mobile as 07X XXX XXXX. International numbers are
// returned in their +<digits> form.
func (v *PhoneValidator) Format(phone string) (string, error) {
	normalized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(normalized, "+") {
		return normalized, nil
	}
	return fmt.Sprintf("%s %s %s", normalized[:3], normalized[3:6], normalized[6:]), nil
}

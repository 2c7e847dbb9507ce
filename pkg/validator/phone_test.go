package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptedForms(t *testing.T) {
	v := NewPhoneValidator(false)

	tests := []struct {
		name  string
		input string
	}{
		{"local", "0771234567"},
		{"spaces", "077 123 4567"},
		{"dashes", "077-123-4567"},
		{"dots", "077.123.4567"},
		{"parentheses", "(077) 123 4567"},
		{"country code", "94771234567"},
		{"plus country code", "+94 77 123 4567"},
		{"double zero country code", "0094 77 123 4567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, "0771234567", got)
		})
	}
}

func TestValidate_Rejected(t *testing.T) {
	v := NewPhoneValidator(false)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyPhone},
		{"blank", "   ", ErrEmptyPhone},
		{"letters", "077123456a", ErrInvalidFormat},
		{"symbols", "077 123 456!", ErrInvalidFormat},
		{"short", "077123", ErrInvalidLength},
		{"long", "07712345678", ErrInvalidLength},
		{"landline", "0112345678", ErrInvalidPrefix},
		{"unassigned 073", "0731234567", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSanitize(t *testing.T) {
	v := NewPhoneValidator(false)

	assert.Equal(t, "0771234567", v.Sanitize("+94-77-123-4567"))
	// a 94 prefix is only a country code when the length says so
	assert.Equal(t, "9477123456", v.Sanitize("9477123456"))
}

func TestFormat(t *testing.T) {
	v := NewPhoneValidator(false)

	got, err := v.Format("94771234567")
	require.NoError(t, err)
	assert.Equal(t, "077 123 4567", got)

	_, err = v.Format("123")
	assert.ErrorIs(t, err, ErrInvalidLength)

	got, err = NewPhoneValidator(true).Format("+44 7911 123456")
	require.NoError(t, err)
	assert.Equal(t, "+447911123456", got)
}

func TestValidate_International(t *testing.T) {
	v := NewPhoneValidator(true)

	got, err := v.Validate("+44 7911 123456")
	require.NoError(t, err)
	assert.Equal(t, "+447911123456", got)

	got, err = v.Validate("0061 412 345 678")
	require.NoError(t, err)
	assert.Equal(t, "+61412345678", got)

	// +94 still goes through the local mobile rules
	got, err = v.Validate("+94 77 123 4567")
	require.NoError(t, err)
	assert.Equal(t, "0771234567", got)
	_, err = v.Validate("+94 11 234 5678")
	assert.ErrorIs(t, err, ErrInvalidPrefix)

	_, err = v.Validate("+1 234")
	assert.ErrorIs(t, err, ErrInternationalLength)
	_, err = v.Validate("+1 234 567 890 123 456")
	assert.ErrorIs(t, err, ErrInternationalLength)

	_, err = NewPhoneValidator(false).Validate("+44 7911 123456")
	assert.ErrorIs(t, err, ErrInternationalNotAllowed)
}

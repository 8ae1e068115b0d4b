package services_test

import (
	"errors"
	"testing"

	"duka/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"0112345678", "254112345678"},
		{" 0798765432 ", "254798765432"},
		{"254712345678", "254712345678"},
		{"254112345678", "254112345678"},
	}
	for _, tt := range tests {
		got, err := services.NormalizePhone(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Len(t, got, 12)
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"071234567",     // too short
		"07123456789",   // too long
		"+254712345678", // plus sign
		"25471234567",   // 11 digits
		"0812345678",    // unknown local prefix
		"712345678",
		"07123abc78",
		"1254712345678",
	} {
		_, err := services.NormalizePhone(in)
		assert.True(t, errors.Is(err, services.ErrValidation), "expected validation error for %q", in)
	}
}

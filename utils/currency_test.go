package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCurrencyIDR(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{15000.50, "Rp 15.000,50"},
		{1000000, "Rp 1.000.000"},
		{1005, "Rp 1.005"},
		{-2500, "-Rp 2.500"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrencyIDR(tt.amount))
	}
}

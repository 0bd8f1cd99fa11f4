package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestToFixed(t *testing.T) {
	assertion := assert.New(t)
	formatter := &Formatter{}

	assertion.Equal(100.75, formatter.ToFixed(100.7512, 2))
	assertion.Equal(100.76, formatter.ToFixed(100.756, 2))
	assertion.Equal(1.00, formatter.ToFixed(0.70, 0))
	assertion.Equal(-5.00, formatter.ToFixed(-4.7, 0))
}

func TestToCeil(t *testing.T) {
	assertion := assert.New(t)
	formatter := &Formatter{}

	assertion.Equal(1.00, formatter.ToCeil(0.40, 0))
	assertion.Equal(0.08, formatter.ToCeil(0.0731, 2))
	assertion.Equal(2.00, formatter.ToCeil(2.00, 0))
}

func TestPercentChange(t *testing.T) {
	assertion := assert.New(t)
	formatter := &Formatter{}

	assertion.Equal(2.5, formatter.PercentChange(102.5, 100.00))
	assertion.Equal(-5.00, formatter.PercentChange(95.00, 100.00))
}

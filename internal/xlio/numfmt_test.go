package xlio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/xlio"
)

func TestFormatNumber_FallsBackWithoutSections(t *testing.T) {
	got := xlio.FormatNumber(42.5, "")
	assert.Equal(t, "42.5", got)
}

func TestFormatNumber_NeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		xlio.FormatNumber(1234.5, "#,##0.00")
		xlio.FormatNumber(0.5, "0.00%")
		xlio.FormatNumber(-3, "General")
	})
}

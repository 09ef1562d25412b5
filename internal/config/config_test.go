package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestValidate_RejectsNonPowerOfTwoBlockSize(t *testing.T) {
	c := config.Default()
	c.BlockSize = 33
	err := c.Validate()
	require := assert.New(t)
	require.Error(err)
	appErr, ok := err.(*apperr.Error)
	require.True(ok)
	require.Equal(apperr.InvalidArgument, appErr.Code)
}

func TestValidate_RejectsZeroMaxThreads(t *testing.T) {
	c := config.Default()
	c.MaxThreads = 0
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsZeroRangeExpansionLimit(t *testing.T) {
	c := config.Default()
	c.RangeExpansionLimit = 0
	assert.Error(t, c.Validate())
}

func TestValidate_AllowsZeroUndoRetention(t *testing.T) {
	c := config.Default()
	c.UndoRetention = 0
	assert.NoError(t, c.Validate())
}

func TestString_IncludesCoreFields(t *testing.T) {
	s := config.Default().String()
	assert.Contains(t, s, "parallel=true")
	assert.Contains(t, s, "threads=4")
}

package apperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
)

func TestCode_String(t *testing.T) {
	assert.Equal(t, "InvalidArgument", apperr.InvalidArgument.String())
	assert.Equal(t, "OK", apperr.OK.String())
	assert.Equal(t, "Unknown", apperr.Code(99).String())
}

func TestNew_FormatsMessage(t *testing.T) {
	err := apperr.New(apperr.NotFound, "sheet %q not found", "Sheet1")
	assert.Equal(t, apperr.NotFound, err.Code)
	assert.Equal(t, `sheet "Sheet1" not found`, err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, `NotFound: sheet "Sheet1" not found`, err.Error())
}

func TestWrap_CarriesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := apperr.Wrap(apperr.Internal, cause, "failed to load %s", "workbook")
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "failed to load workbook")
}

func TestCodeOf_NilIsOK(t *testing.T) {
	assert.Equal(t, apperr.OK, apperr.CodeOf(nil))
}

func TestCodeOf_ExtractsCodeFromAppError(t *testing.T) {
	err := apperr.New(apperr.OutOfRange, "bad index")
	assert.Equal(t, apperr.OutOfRange, apperr.CodeOf(err))
}

func TestCodeOf_PlainErrorIsUnknown(t *testing.T) {
	assert.Equal(t, apperr.Unknown, apperr.CodeOf(errors.New("plain")))
}

package workflowerrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewError_Nil(t *testing.T) {
	err := FromError(nil)
	require.Nil(t, err)
}

func Test_NewError_DoesNotWrapAgain(t *testing.T) {
	err := FromError(errors.New("foo"))

	err2 := FromError(err)
	require.NoError(t, errors.Unwrap(err2))
}

func Test_NewError_DoesWrap(t *testing.T) {
	input := errors.New("foo")
	e := FromError(input)

	var expectedType *Error
	require.ErrorAs(t, e, &expectedType)
	require.Error(t, e, input.Error())

	require.False(t, e.Permanent)
	require.NoError(t, e.Cause)
}

func Test_NewPermanentError(t *testing.T) {
	input := errors.New("foo")
	e := NewPermanentError(input)

	var expected *Error
	require.ErrorAs(t, e, &expected)
	require.Error(t, e, input.Error())

	require.True(t, e.Permanent)
	require.NoError(t, e.Cause)
}

func Test_Error_JSON(t *testing.T) {
	e := FromError(fmt.Errorf("scheduling step: %w", errors.New("rate limited")))

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var e2 Error
	require.NoError(t, json.Unmarshal(b, &e2))
	require.Equal(t, "scheduling step: rate limited", e2.Error())
	require.Equal(t, "rate limited", errors.Unwrap(&e2).Error())
}

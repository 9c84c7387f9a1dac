package converter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Value(t *testing.T) {
	p, err := DefaultConverter.To(map[string]any{"b": 2, "a": []int{1}})
	require.NoError(t, err)
	require.Equal(t, `{"a":[1],"b":2}`, string(p))

	v, err := Value(DefaultConverter, p)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{float64(1)}, "b": float64(2)}, v)
}

func Test_Value_Empty(t *testing.T) {
	v, err := Value(DefaultConverter, nil)
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Value(DefaultConverter, []byte("null"))
	require.NoError(t, err)
	require.Nil(t, v)
}

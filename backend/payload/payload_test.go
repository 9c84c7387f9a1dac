package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Payload_EmbedsRawJSON(t *testing.T) {
	v := struct {
		Input Payload `json:"input"`
	}{Input: Payload(`{"a":1}`)}

	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"input":{"a":1}}`, string(b))

	v.Input = nil
	require.NoError(t, json.Unmarshal(b, &v))
	require.Equal(t, `{"a":1}`, string(v.Input))
}

func Test_Payload_Equal(t *testing.T) {
	require.True(t, Payload(nil).Equal(Payload("null")))
	require.True(t, Payload(`[1]`).Equal(Payload(`[1]`)))
	require.False(t, Payload(`[1]`).Equal(nil))
	require.False(t, Payload(`[1]`).Equal(Payload(`[2]`)))
}

package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGoToGo_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		in   any
	}{
		{"string", "hello"},
		{"bool", true},
		{"float", 3.5},
		{"nil", nil},
		{"map", map[string]any{"url": "https://example.com", "retries": 3.0}},
		{"list", []any{"a", "b", "c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := FromGo(tc.in)
			require.NoError(t, err)
			out, err := v.ToGo()
			require.NoError(t, err)
			assert.Equal(t, tc.in, out)
		})
	}
}

func TestFromGo_UnsupportedType(t *testing.T) {
	_, err := FromGo(make(chan int))
	assert.Error(t, err)
}

func TestNil_ToGoIsNil(t *testing.T) {
	out, err := Nil.ToGo()
	require.NoError(t, err)
	assert.Nil(t, out)
}

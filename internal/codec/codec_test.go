package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_NumberKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want any
	}{
		{name: "integer", in: `150`, want: int64(150)},
		{name: "negative integer", in: `-7`, want: int64(-7)},
		{name: "fraction", in: `1.5`, want: 1.5},
		{name: "integral float literal", in: `2.0`, want: 2.0},
		{name: "exponent", in: `1e3`, want: 1000.0},
		{name: "overflow becomes float", in: `92233720368547758080`, want: 92233720368547758080.0},
		{name: "blank", in: "  ", want: nil},
		{name: "null", in: `null`, want: nil},
		{name: "string", in: `"coins"`, want: "coins"},
		{name: "bool", in: `true`, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Nested(t *testing.T) {
	t.Parallel()

	got, err := Decode(`{"a":[1,2.5,{"b":null}],"c":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": []any{int64(1), 2.5, map[string]any{"b": nil}},
		"c": "x",
	}, got)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(`{"a":`)
	require.Error(t, err)

	_, err = Decode(`1 2`)
	require.ErrorContains(t, err, "trailing data")

	_, err = DecodeMap(`[1]`)
	require.ErrorContains(t, err, "expected object")

	_, err = DecodeList(`{}`)
	require.ErrorContains(t, err, "expected array")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	type named string

	got, err := Normalize(map[string]any{
		"i":  int32(4),
		"u":  uint8(9),
		"f":  float32(0.5),
		"s":  []string{"a", "b"},
		"m":  map[string]int{"x": 1},
		"n":  named("hi"),
		"p":  (*int)(nil),
		"ar": [2]bool{true, false},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"i":  int64(4),
		"u":  int64(9),
		"f":  0.5,
		"s":  []any{"a", "b"},
		"m":  map[string]any{"x": int64(1)},
		"n":  "hi",
		"p":  nil,
		"ar": []any{true, false},
	}, got)

	_, err = Normalize(map[int]string{1: "a"})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Normalize(struct{}{})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Normalize([]any{func() {}})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestEncode(t *testing.T) {
	t.Parallel()

	s, err := Encode(map[string]any{"b": 1, "a": "<x>"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1}`, s)

	s, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)

	v, err := EncodeOrNull(map[string]any(nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = EncodeOrNull([]int{1})
	require.NoError(t, err)
	assert.Equal(t, "[1]", v)
}

// position_test.go
package merlin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Position_EncodeDecodeRoundTrip(t *testing.T) {
	for _, p := range []Position{
		{Line: 1, Col: 0},
		{Line: 1, Col: 42},
		{Line: 9999, Col: 7},
	} {
		got, err := DecodePosition(EncodePosition(p))
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func Test_Position_DecodeFromWireJSON(t *testing.T) {
	// encoding/json hands the decoder float64 values
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{"line":3,"col":14}`), &v))
	got, err := DecodePosition(v)
	require.NoError(t, err)
	require.Equal(t, Position{Line: 3, Col: 14}, got)
}

func Test_Position_DecodeMalformed(t *testing.T) {
	cases := []any{
		nil,
		"1:0",
		[]any{1, 0},
		map[string]any{"line": 1.0},                 // missing col
		map[string]any{"line": 1.5, "col": 0.0},     // non-integer
		map[string]any{"line": "1", "col": "0"},     // strings
		map[string]any{"row": 1.0, "column": 2.0},   // wrong keys
		map[string]any{"line": true, "col": false},  // booleans
		map[string]any{"line": nil, "col": nil},     // nulls
	}
	for _, c := range cases {
		_, err := DecodePosition(c)
		require.ErrorIs(t, err, ErrMalformedPosition, "case %#v", c)
	}
}

func Test_Position_Ordering(t *testing.T) {
	a := Position{Line: 1, Col: 5}
	b := Position{Line: 1, Col: 6}
	c := Position{Line: 2, Col: 0}
	require.True(t, a.Before(b))
	require.True(t, b.Before(c))
	require.False(t, c.Before(a))
	require.True(t, a.AtOrBefore(a))

	loc := Location{Start: a, End: c}
	require.True(t, loc.Contains(a))
	require.True(t, loc.Contains(b))
	require.False(t, loc.Contains(c)) // end exclusive
}

func Test_WithLocation_MergesFields(t *testing.T) {
	loc := Location{Start: Position{Line: 1, Col: 0}, End: Position{Line: 1, Col: 3}}
	out := WithLocation(loc, map[string]any{"type": "int", "start": "clobbered"})
	require.Equal(t, "int", out["type"])
	require.Equal(t, EncodePosition(loc.Start), out["start"])
	require.Equal(t, EncodePosition(loc.End), out["end"])
}

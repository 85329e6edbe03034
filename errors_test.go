// errors_test.go
package merlin

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ErrorLocation(t *testing.T) {
	loc, ok := ErrorLocation(&ParseError{Line: 3, Col: 7, Msg: "x"})
	require.True(t, ok)
	require.Equal(t, Position{Line: 3, Col: 7}, loc.Start)

	loc, ok = ErrorLocation(&TypeError{Loc: Location{Start: Position{Line: 2, Col: 1}}, Msg: "x"})
	require.True(t, ok)
	require.Equal(t, 2, loc.Start.Line)

	_, ok = ErrorLocation(errors.New("plain"))
	require.False(t, ok)
}

func Test_WrapErrorWithSource_Caret(t *testing.T) {
	src := "let x = (1 + 2\n             )\nend"
	err := WrapErrorWithSource(&ParseError{Line: 2, Col: 13, Msg: "unexpected token ')'"}, src)
	msg := err.Error()
	require.Contains(t, msg, "PARSE ERROR at 2:14")
	require.Contains(t, msg, "   1 | let x = (1 + 2")
	require.Contains(t, msg, "   2 |              )")
	require.Contains(t, msg, "^")
	require.Contains(t, msg, "   3 | end")
}

func Test_WrapErrorWithSource_ClampsOutOfRange(t *testing.T) {
	err := WrapErrorWithSource(&LexError{Line: 99, Col: 99, Msg: "boom"}, "one line")
	require.True(t, strings.Contains(err.Error(), "one line"))
}

func Test_WrapErrorWithSource_PassesThroughUnknown(t *testing.T) {
	plain := errors.New("plain")
	require.Same(t, plain, WrapErrorWithSource(plain, "src"))
}

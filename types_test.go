// types_test.go
package merlin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_FormatType(t *testing.T) {
	intT := TCon("int")
	strT := TCon("string")
	cases := []struct {
		in   S
		want string
	}{
		{TAny(), "'a"},
		{intT, "int"},
		{TArrow(intT, strT), "int -> string"},
		{TArrow(intT, TArrow(intT, intT)), "int -> int -> int"},
		{TArrow(TArrow(intT, intT), intT), "(int -> int) -> int"},
		{S{"ttuple", intT, strT}, "int * string"},
		{S{"ttuple", intT, TArrow(intT, intT)}, "int * (int -> int)"},
		{S{"tapp", "list", intT}, "int list"},
		{S{"tapp", "list", TArrow(intT, intT)}, "(int -> int) list"},
		{TArrow(S{"ttuple", intT, intT}, intT), "(int * int) -> int"},
		{S{"variants", S{"ctor", "Point"}, S{"ctor", "Circle", TCon("float")}},
			"Point | Circle of float"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FormatType(c.in), "%v", c.in)
	}
}

func Test_Unify_AnyAbsorbs(t *testing.T) {
	intT := TCon("int")
	u, ok := Unify(TAny(), intT)
	require.True(t, ok)
	require.Equal(t, intT, u)

	u, ok = Unify(intT, TAny())
	require.True(t, ok)
	require.Equal(t, intT, u)
}

func Test_Unify_Structural(t *testing.T) {
	intT, strT := TCon("int"), TCon("string")

	_, ok := Unify(intT, strT)
	require.False(t, ok)

	u, ok := Unify(TArrow(TAny(), intT), TArrow(strT, TAny()))
	require.True(t, ok)
	require.Equal(t, TArrow(strT, intT), u)

	_, ok = Unify(S{"ttuple", intT, intT}, S{"ttuple", intT, intT, intT})
	require.False(t, ok)

	u, ok = Unify(S{"tapp", "list", TAny()}, S{"tapp", "list", intT})
	require.True(t, ok)
	require.Equal(t, S{"tapp", "list", intT}, u)

	_, ok = Unify(S{"tapp", "list", intT}, S{"tapp", "option", intT})
	require.False(t, ok)
}

func Test_Compatible(t *testing.T) {
	require.True(t, Compatible(TAny(), TCon("int")))
	require.True(t, Compatible(TCon("int"), TCon("int")))
	require.False(t, Compatible(TCon("int"), TCon("string")))
}

func Test_Env_ShadowingAndNames(t *testing.T) {
	root := NewEnv(nil)
	root.Define("x", TCon("int"))
	root.Define("y", TCon("string"))

	inner := NewEnv(root)
	inner.Define("x", TCon("bool"))

	got, ok := inner.Lookup("x")
	require.True(t, ok)
	require.Equal(t, TCon("bool"), got)

	names := inner.Names()
	require.Equal(t, TCon("bool"), names["x"], "inner binding wins")
	require.Equal(t, TCon("string"), names["y"])
}

func Test_Env_CtorsAppearInNames(t *testing.T) {
	e := NewEnv(nil)
	e.DefineCtor("Circle", Ctor{Result: "shape", Arg: TCon("float")})
	e.DefineCtor("Point", Ctor{Result: "shape"})

	names := e.Names()
	require.Equal(t, TArrow(TCon("float"), TCon("shape")), names["Circle"])
	require.Equal(t, TCon("shape"), names["Point"])
}

func Test_BaseEnv_Primitives(t *testing.T) {
	e := BaseEnv()
	got, ok := e.Lookup("print_string")
	require.True(t, ok)
	require.Equal(t, "string -> unit", FormatType(got))
	_, ok = e.LookupType("int")
	require.True(t, ok)
}

// types.go — type terms, formatting, unification
//
// Types are S-expressions in the same shape the parser produces for type
// annotations, so inferred and declared types compare directly:
//
//	("tcon", name)       // int, string, bool, float, unit, or a user type
//	("tarrow", a, b)     // a -> b, right-assoc
//	("ttuple", t1, ...)  // t1 * t2 * ...
//	("tapp", con, arg)   // arg con, e.g. int list
//	("tany")             // unknown; unifies with everything
//
// The checker is deliberately liberal: where it cannot decide it infers
// ("tany") and stays quiet rather than cascading errors through the rest
// of the buffer.

package merlin

import (
	"fmt"
	"strings"
)

// TAny returns the unknown type.
func TAny() S { return S{"tany"} }

// TCon returns a named type constructor term.
func TCon(name string) S { return S{"tcon", name} }

// TArrow returns the function type a -> b.
func TArrow(a, b S) S { return S{"tarrow", a, b} }

// TypeTag returns the tag of a type term, "" for malformed terms.
func TypeTag(t S) string {
	if len(t) == 0 {
		return ""
	}
	tag, _ := t[0].(string)
	return tag
}

// IsAny reports whether t is the unknown type.
func IsAny(t S) bool { return TypeTag(t) == "tany" }

// FormatType renders a type term in source syntax.
func FormatType(t S) string {
	return formatType(t, false)
}

// Unify computes the common type of a and b. The unknown type absorbs;
// structural terms unify component-wise. ok is false when the shapes are
// incompatible, in which case the result is the unknown type.
func Unify(a, b S) (S, bool) {
	if IsAny(a) {
		return b, true
	}
	if IsAny(b) {
		return a, true
	}
	ta, tb := TypeTag(a), TypeTag(b)
	if ta != tb {
		return TAny(), false
	}
	switch ta {
	case "tcon":
		if len(a) >= 2 && len(b) >= 2 && a[1] == b[1] {
			return a, true
		}
		return TAny(), false
	case "tarrow":
		if len(a) < 3 || len(b) < 3 {
			return TAny(), false
		}
		p, okP := Unify(asType(a[1]), asType(b[1]))
		r, okR := Unify(asType(a[2]), asType(b[2]))
		return S{"tarrow", p, r}, okP && okR
	case "ttuple":
		if len(a) != len(b) {
			return TAny(), false
		}
		out := S{"ttuple"}
		allOK := true
		for i := 1; i < len(a); i++ {
			u, ok := Unify(asType(a[i]), asType(b[i]))
			out = append(out, u)
			allOK = allOK && ok
		}
		return out, allOK
	case "tapp":
		if len(a) < 3 || len(b) < 3 || a[1] != b[1] {
			return TAny(), false
		}
		arg, ok := Unify(asType(a[2]), asType(b[2]))
		return S{"tapp", a[1], arg}, ok
	}
	return TAny(), false
}

// Compatible reports whether got could be used where want is expected.
// Unknown on either side is always compatible.
func Compatible(got, want S) bool {
	if IsAny(got) || IsAny(want) {
		return true
	}
	_, ok := Unify(got, want)
	return ok
}

//// END_OF_PUBLIC

func asType(v any) S {
	if t, ok := v.(S); ok {
		return t
	}
	return TAny()
}

// formatType renders t, parenthesizing arrows and tuples in argument
// position.
func formatType(t S, nested bool) string {
	switch TypeTag(t) {
	case "tany":
		return "'a"
	case "tcon":
		if len(t) >= 2 {
			if s, ok := t[1].(string); ok {
				return s
			}
		}
		return "?"
	case "tarrow":
		if len(t) < 3 {
			return "?"
		}
		s := formatType(asType(t[1]), true) + " -> " + formatType(asType(t[2]), false)
		if nested {
			return "(" + s + ")"
		}
		return s
	case "ttuple":
		parts := make([]string, 0, len(t)-1)
		for i := 1; i < len(t); i++ {
			parts = append(parts, formatType(asType(t[i]), true))
		}
		s := strings.Join(parts, " * ")
		if nested {
			return "(" + s + ")"
		}
		return s
	case "tapp":
		if len(t) < 3 {
			return "?"
		}
		con, _ := t[1].(string)
		return formatType(asType(t[2]), true) + " " + con
	case "variants":
		parts := make([]string, 0, len(t)-1)
		for i := 1; i < len(t); i++ {
			c := asType(t[i])
			if len(c) >= 2 {
				name, _ := c[1].(string)
				if len(c) >= 3 {
					parts = append(parts, fmt.Sprintf("%s of %s", name, formatType(asType(c[2]), true)))
				} else {
					parts = append(parts, name)
				}
			}
		}
		return strings.Join(parts, " | ")
	}
	return "?"
}

// Package datum implements the uniform stack cell used by the P compiler
// and the P-machine: a tagged value that is either an integer or a real.
//
// A Datum is copy-value; the machine's stack and each instruction's addr
// operand hold Datums directly, never pointers to them. Mixed-kind arithmetic
// is never performed implicitly here -- the compiler is responsible for
// emitting explicit conversion opcodes (ItoR/ItoR2) before any binary op
// reaches the machine, so Add/Sub/Mul/... all panic on a kind mismatch
// rather than silently promoting.
package datum

import (
	"fmt"
	"math"
)

// Kind identifies which alternative of the Datum variant is active.
type Kind uint8

const (
	Integer Kind = iota
	RealKind
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case RealKind:
		return "real"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Datum is a tagged integer-or-real value.
type Datum struct {
	kind Kind
	i    int64
	r    float64
}

// Int constructs an integer Datum.
func Int(n int64) Datum { return Datum{kind: Integer, i: n} }

// Real constructs a real Datum.
func Real(f float64) Datum { return Datum{kind: RealKind, r: f} }

// Zero returns the zero value for the given kind.
func Zero(k Kind) Datum {
	if k == RealKind {
		return Real(0)
	}
	return Int(0)
}

// Kind returns which alternative is active.
func (d Datum) Kind() Kind { return d.kind }

// IsInteger reports whether d holds an integer.
func (d Datum) IsInteger() bool { return d.kind == Integer }

// IsReal reports whether d holds a real.
func (d Datum) IsReal() bool { return d.kind == RealKind }

// Int64 returns the integer value. Panics if d is not an integer.
func (d Datum) Int64() int64 {
	if d.kind != Integer {
		panic("datum: Int64 called on a real Datum")
	}
	return d.i
}

// Float64 returns the real value. Panics if d is not a real.
func (d Datum) Float64() float64 {
	if d.kind != RealKind {
		panic("datum: Float64 called on an integer Datum")
	}
	return d.r
}

// AsFloat64 returns the value as a float64 regardless of kind, widening an
// integer if necessary. Used only by the machine's explicit ItoR/ItoR2
// opcodes, never by arithmetic.
func (d Datum) AsFloat64() float64 {
	if d.kind == RealKind {
		return d.r
	}
	return float64(d.i)
}

// Ordinal returns the Datum's value as an int, valid for ordinal kinds
// (Integer, and Reals truncated by the caller beforehand via Trunc/Round).
func (d Datum) Ordinal() int64 {
	if d.kind == Integer {
		return d.i
	}
	return int64(d.r)
}

func mismatch(op string, a, b Datum) {
	panic(fmt.Sprintf("datum: %s requires matching kinds, got %s and %s", op, a.kind, b.kind))
}

// Add returns a+b. Both operands must share a kind.
func (a Datum) Add(b Datum) Datum {
	if a.kind != b.kind {
		mismatch("Add", a, b)
	}
	if a.kind == Integer {
		return Int(a.i + b.i)
	}
	return Real(a.r + b.r)
}

// Sub returns a-b.
func (a Datum) Sub(b Datum) Datum {
	if a.kind != b.kind {
		mismatch("Sub", a, b)
	}
	if a.kind == Integer {
		return Int(a.i - b.i)
	}
	return Real(a.r - b.r)
}

// Mul returns a*b.
func (a Datum) Mul(b Datum) Datum {
	if a.kind != b.kind {
		mismatch("Mul", a, b)
	}
	if a.kind == Integer {
		return Int(a.i * b.i)
	}
	return Real(a.r * b.r)
}

// Div returns a/b: truncating integer division for Integer, IEEE division
// for Real. The caller is responsible for checking for division by zero
// before calling (the machine reports DivideByZero itself).
func (a Datum) Div(b Datum) Datum {
	if a.kind != b.kind {
		mismatch("Div", a, b)
	}
	if a.kind == Integer {
		return Int(a.i / b.i)
	}
	return Real(a.r / b.r)
}

// Rem returns the integer remainder of a%b. Both operands must be integers.
func (a Datum) Rem(b Datum) Datum {
	if a.kind != Integer || b.kind != Integer {
		mismatch("Rem", a, b)
	}
	return Int(a.i % b.i)
}

// IsZero reports whether the Datum is the zero value of its kind.
func (d Datum) IsZero() bool {
	if d.kind == Integer {
		return d.i == 0
	}
	return d.r == 0
}

// Neg returns -d.
func (d Datum) Neg() Datum {
	if d.kind == Integer {
		return Int(-d.i)
	}
	return Real(-d.r)
}

// Cmp compares two Datums of the same kind, returning -1, 0, or 1.
func (a Datum) Cmp(b Datum) int {
	if a.kind != b.kind {
		mismatch("Cmp", a, b)
	}
	if a.kind == Integer {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.r < b.r:
		return -1
	case a.r > b.r:
		return 1
	default:
		return 0
	}
}

// Round returns the nearest integer Datum to a real Datum.
func (d Datum) Round() Datum {
	if d.kind != RealKind {
		mismatch("Round", d, d)
	}
	return Int(int64(math.Round(d.r)))
}

// Trunc returns the truncated integer Datum of a real Datum.
func (d Datum) Trunc() Datum {
	if d.kind != RealKind {
		mismatch("Trunc", d, d)
	}
	return Int(int64(math.Trunc(d.r)))
}

// String renders the Datum in its short form: %d for an integer, %g for a
// real. WRITE/WRITELN format reals differently (default precision 6).
func (d Datum) String() string {
	if d.kind == Integer {
		return fmt.Sprintf("%d", d.i)
	}
	return fmt.Sprintf("%g", d.r)
}

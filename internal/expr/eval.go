package expr

import (
	"fmt"
	"strings"
)

// Context resolves attribute paths during evaluation. Implemented by record
// instances; step-by-step resolution of the dotted path is the context's job
// because only it knows how to descend into nested records.
//
// Resolve returns one of int64, uint64, bool, or string.
type Context interface {
	Resolve(path []string) (any, error)
}

// EvalError reports a failure to evaluate an expression against a context.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %s", e.Expr, e.Message)
}

// Eval evaluates the expression against ctx and reduces the result to an
// integer: comparison and logical operators yield 0 or 1, arithmetic and
// bitwise operators yield their integer result, and a bare string operand
// yields 1 when non-empty. Division truncates.
func (e *Expr) Eval(ctx Context) (int64, error) {
	v, err := e.eval(ctx)
	if err != nil {
		return 0, err
	}
	if truthy(v) {
		if n, ok := asInt(v); ok {
			return n, nil
		}
		return 1, nil
	}
	return 0, nil
}

// EvalValue evaluates the expression without reducing the result to an
// integer. Array containers use it for width expressions that resolve to a
// per-row length list.
func (e *Expr) EvalValue(ctx Context) (any, error) {
	return e.eval(ctx)
}

// EvalBool evaluates the expression and reports its truthiness.
func (e *Expr) EvalBool(ctx Context) (bool, error) {
	v, err := e.eval(ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (e *Expr) eval(ctx Context) (any, error) {
	switch e.op {
	case OpNone:
		return e.leaf(ctx)
	case OpNot:
		v, err := e.rhs.eval(ctx)
		if err != nil {
			return nil, err
		}
		return boolInt(!truthy(v)), nil
	}

	lv, err := e.lhs.eval(ctx)
	if err != nil {
		return nil, err
	}
	// Short-circuit the logical operators before touching the right side: a
	// condition like "Has Normals && Num Vertices > 0" must not resolve
	// attributes that the left side already ruled out.
	switch e.op {
	case OpLogicalAnd:
		if !truthy(lv) {
			return int64(0), nil
		}
	case OpLogicalOr:
		if truthy(lv) {
			return int64(1), nil
		}
	}
	rv, err := e.rhs.eval(ctx)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case OpLogicalAnd, OpLogicalOr:
		return boolInt(truthy(rv)), nil
	case OpEq, OpNe:
		eq, err := equal(lv, rv)
		if err != nil {
			return nil, &EvalError{Expr: e.String(), Message: err.Error()}
		}
		if e.op == OpNe {
			eq = !eq
		}
		return boolInt(eq), nil
	}

	ln, ok := asInt(lv)
	if !ok {
		return nil, &EvalError{Expr: e.String(), Message: fmt.Sprintf("left operand %v is not an integer", lv)}
	}
	rn, ok := asInt(rv)
	if !ok {
		return nil, &EvalError{Expr: e.String(), Message: fmt.Sprintf("right operand %v is not an integer", rv)}
	}
	switch e.op {
	case OpGe:
		return boolInt(ln >= rn), nil
	case OpLe:
		return boolInt(ln <= rn), nil
	case OpLt:
		return boolInt(ln < rn), nil
	case OpGt:
		return boolInt(ln > rn), nil
	case OpBitAnd:
		return ln & rn, nil
	case OpBitOr:
		return ln | rn, nil
	case OpAdd:
		return ln + rn, nil
	case OpSub:
		return ln - rn, nil
	case OpMul:
		return ln * rn, nil
	case OpDiv:
		if rn == 0 {
			return nil, &EvalError{Expr: e.String(), Message: "division by zero"}
		}
		return ln / rn, nil
	}
	return nil, &EvalError{Expr: e.String(), Message: "unknown operator"}
}

func (e *Expr) leaf(ctx Context) (any, error) {
	switch {
	case e.isInt:
		return e.intVal, nil
	case e.isStr:
		return e.strVal, nil
	}
	if ctx == nil {
		return nil, &EvalError{Expr: e.String(), Message: "attribute path with nil context"}
	}
	v, err := ctx.Resolve(e.path)
	if err != nil {
		return nil, &EvalError{Expr: strings.Join(e.path, "."), Message: err.Error()}
	}
	return v, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case bool:
		return x
	case string:
		return x != ""
	default:
		return false
	}
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func equal(a, b any) (bool, error) {
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs, nil
		}
		return false, fmt.Errorf("comparing string %q with non-string %v", as, b)
	}
	if _, bok := b.(string); bok {
		return equal(b, a)
	}
	an, aok := asInt(a)
	bn, bok := asInt(b)
	if !aok || !bok {
		return false, fmt.Errorf("incomparable operands %v and %v", a, b)
	}
	return an == bn, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

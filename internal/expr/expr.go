package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a binary or unary operator.
type Op int

const (
	OpNone Op = iota // leaf node, no operator
	OpEq
	OpNe
	OpGe
	OpLe
	OpLogicalAnd
	OpLogicalOr
	OpBitAnd
	OpBitOr
	OpSub
	OpNot
	OpLt
	OpGt
	OpDiv
	OpMul
	OpAdd
)

// opTokens lists operator spellings in scan order. Two-character operators
// come first: the scanner tries them before their one-character prefixes.
var opTokens = []struct {
	text string
	op   Op
}{
	{"==", OpEq},
	{"!=", OpNe},
	{">=", OpGe},
	{"<=", OpLe},
	{"&&", OpLogicalAnd},
	{"||", OpLogicalOr},
	{"&", OpBitAnd},
	{"|", OpBitOr},
	{"-", OpSub},
	{"!", OpNot},
	{"<", OpLt},
	{">", OpGt},
	{"/", OpDiv},
	{"*", OpMul},
	{"+", OpAdd},
}

func (o Op) String() string {
	for _, t := range opTokens {
		if t.op == o {
			return t.text
		}
	}
	return ""
}

// SyntaxError reports a malformed expression string.
type SyntaxError struct {
	Text    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %q: %s", e.Text, e.Message)
}

// NameFilter rewrites one attribute path component at parse time. Format
// description files spell attribute names with spaces ("User Version"); the
// loader supplies a filter mapping them onto canonical member names.
type NameFilter func(string) string

// Expr is an immutable parsed expression tree. A node is either a leaf
// (operand set, op == OpNone), a unary node (op == OpNot, rhs set), or a
// binary node (lhs, op, rhs). Expressions never mutate after Parse and are
// safe to share across record instances.
type Expr struct {
	lhs *Expr
	op  Op
	rhs *Expr

	// Leaf payload; exactly one of these is meaningful when op == OpNone.
	isInt   bool
	intVal  int64
	isStr   bool
	strVal  string
	path    []string // dotted attribute path
}

// Parse parses an expression with no name rewriting.
func Parse(text string) (*Expr, error) {
	return ParseFilter(text, nil)
}

// ParseFilter parses an expression, applying filter to every attribute path
// component. A nil filter leaves names untouched.
func ParseFilter(text string, filter NameFilter) (*Expr, error) {
	if err := checkBrackets(text); err != nil {
		return nil, err
	}
	return parse(strings.TrimSpace(text), text, filter)
}

// MustParse is Parse for statically known expressions; it panics on error.
// Used by format packages whose envelope expressions are compile-time
// constants.
func MustParse(text string) *Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func checkBrackets(text string) error {
	depth := 0
	for _, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return &SyntaxError{Text: text, Message: "unbalanced brackets"}
			}
		}
	}
	if depth != 0 {
		return &SyntaxError{Text: text, Message: "unbalanced brackets"}
	}
	return nil
}

// parse partitions s at its first top-level operator and recurses into the
// two halves. whole is the original text, kept for error reporting.
func parse(s, whole string, filter NameFilter) (*Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &SyntaxError{Text: whole, Message: "empty operand"}
	}

	// Unary not.
	if s[0] == '!' && !strings.HasPrefix(s, "!=") {
		rhs, err := parse(s[1:], whole, filter)
		if err != nil {
			return nil, err
		}
		return &Expr{op: OpNot, rhs: rhs}, nil
	}

	left, op, right, found, err := partition(s, whole)
	if err != nil {
		return nil, err
	}
	if !found {
		// Fully bracketed group: strip and reparse.
		if strings.HasPrefix(left, "(") {
			return parse(left[1:len(left)-1], whole, filter)
		}
		return parseLeaf(left, whole, filter)
	}
	lhs, err := parse(left, whole, filter)
	if err != nil {
		return nil, err
	}
	rhs, err := parse(right, whole, filter)
	if err != nil {
		return nil, err
	}
	return &Expr{lhs: lhs, op: op, rhs: rhs}, nil
}

// partition splits s into (left, op, right) at the first operator outside
// any bracket nesting. found is false when s holds a single operand.
func partition(s, whole string) (left string, op Op, right string, found bool, err error) {
	depth := 0
	i := 0
	// An initial bracketed group is always part of the left operand; skip it
	// so "(a && b) || c" partitions at "||", not at the inner "&&".
	if s[0] == '(' {
		for ; i < len(s); i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				i++
				break
			}
		}
	}
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		case '"':
			// Skip a quoted literal.
			j := strings.IndexByte(s[i+1:], '"')
			if j < 0 {
				return "", OpNone, "", false, &SyntaxError{Text: whole, Message: "unterminated string literal"}
			}
			i += j + 1
			continue
		}
		if depth != 0 {
			continue
		}
		for _, t := range opTokens {
			if strings.HasPrefix(s[i:], t.text) {
				left = strings.TrimSpace(s[:i])
				right = strings.TrimSpace(s[i+len(t.text):])
				if left == "" || right == "" {
					return "", OpNone, "", false, &SyntaxError{Text: whole, Message: "operator " + t.text + " missing an operand"}
				}
				return left, t.op, right, true, nil
			}
		}
	}
	return strings.TrimSpace(s), OpNone, "", false, nil
}

func parseLeaf(s, whole string, filter NameFilter) (*Expr, error) {
	if s == `""` {
		return &Expr{isStr: true}, nil
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return &Expr{isInt: true, intVal: n}, nil
	}
	// Dotted attribute path. Components keep interior spaces; the filter
	// maps them to canonical member names.
	parts := strings.Split(s, ".")
	path := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, &SyntaxError{Text: whole, Message: "empty path component in " + s}
		}
		if filter != nil {
			p = filter(p)
		}
		path[i] = p
	}
	return &Expr{path: path}, nil
}

// String renders the tree back to source form, fully bracketed.
func (e *Expr) String() string {
	switch {
	case e == nil:
		return ""
	case e.op == OpNot:
		return "!" + e.rhs.String()
	case e.op != OpNone:
		return "(" + e.lhs.String() + " " + e.op.String() + " " + e.rhs.String() + ")"
	case e.isInt:
		return strconv.FormatInt(e.intVal, 10)
	case e.isStr:
		return `"` + e.strVal + `"`
	default:
		return strings.Join(e.path, ".")
	}
}

// Package expr implements the small condition language used by format
// descriptions to decide field presence and array lengths.
//
// Expressions are parsed once, when a format description is loaded, into an
// immutable tree. Evaluation walks the tree against a Context (normally a
// record instance) and recomputes from scratch on every call; expressions are
// tiny and each is evaluated at most once per field per record, so there is
// no caching layer.
//
// Grammar: binary operators == != >= <= && || & | - < > / * +, unary !,
// parenthesized grouping. Operands are integer literals (decimal or 0x hex),
// the empty-string literal "", or dotted attribute paths resolved against the
// Context component by component. When scanning for an operator, two-character
// operators are preferred over their one-character prefixes so that "&&" is
// never misread as "&".
package expr

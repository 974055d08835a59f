// Package exprlang parses the opaque expression strings carried by the IR:
// statement bodies, conditions, and variable initializers. The IR stores them
// verbatim; this grammar is the interpreter's private reading of them.
package exprlang

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Op", Pattern: `\+=|-=|\*=|==|!=|<=|>=|[-+*<>=(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var (
	stmtParser = participle.MustBuild[Statement](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(3),
	)
	exprParser = participle.MustBuild[Expr](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(3),
	)
)

// Statement is either an assignment or a bare expression.
type Statement struct {
	Assign *Assign `  @@`
	Expr   *Expr   `| @@`
}

// Assign writes the value of an expression into a named variable, optionally
// through one of the in-place arithmetic forms.
type Assign struct {
	Target string `@Ident`
	Op     string `@("=" | "+=" | "-=" | "*=")`
	Value  *Expr  `@@`
}

// Expr is a comparison over sums; comparisons do not chain.
type Expr struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Left  *Sum   `@@`
	Op    string `[ @("==" | "!=" | "<=" | ">=" | "<" | ">")`
	Right *Sum   `  @@ ]`
}

// Raw returns the verbatim source slice this expression was parsed from.
func (e *Expr) Raw(src string) string {
	if e.Pos.Offset < 0 || e.EndPos.Offset > len(src) || e.Pos.Offset >= e.EndPos.Offset {
		return src
	}
	return src[e.Pos.Offset:e.EndPos.Offset]
}

// Sum is a left-associative chain of additions and subtractions.
type Sum struct {
	Left *Product   `@@`
	Rest []*SumTail `@@*`
}

type SumTail struct {
	Op   string   `@("+" | "-")`
	Term *Product `@@`
}

// Product is a left-associative chain of multiplications.
type Product struct {
	Left *Primary       `@@`
	Rest []*ProductTail `@@*`
}

type ProductTail struct {
	Op   string   `@"*"`
	Term *Primary `@@`
}

// Primary is a call, a literal, an identifier, or a parenthesized group.
type Primary struct {
	Call   *Call   `  @@`
	Number *uint64 `| @Number`
	Str    *string `| @String`
	Ident  *string `| @Ident`
	Group  *Group  `| @@`
}

// Call is a named application. The head may be a user function or one of the
// intrinsic forms (DEBUG, RETURN, CALL, U64, ...); the evaluator dispatches.
type Call struct {
	Name string  `@Ident "("`
	Args []*Expr `( @@ ( "," @@ )* )? ")"`
}

// Group is a parenthesized expression list. A single item is plain grouping;
// any other length is the packed-argument tuple of a CALL form.
type Group struct {
	Items []*Expr `"(" ( @@ ( "," @@ )* )? ")"`
}

// ParseStatement parses one statement body.
func ParseStatement(src string) (*Statement, error) {
	return stmtParser.ParseString("", src)
}

// ParseExpression parses a condition or initializer.
func ParseExpression(src string) (*Expr, error) {
	return exprParser.ParseString("", src)
}

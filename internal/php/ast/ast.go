// Package ast defines the syntax tree the PHP analysers operate on.
//
// The tree keeps only the constructs that influence
// scope resolution and data flow and folds everything else into BadStmt or
// BadExpr so that consumers can log and skip it. Nodes are always handled by
// pointer and their identity is stable for the lifetime of a tree, which lets
// later passes attach information to nodes through side tables.
package ast

// Node is implemented by every element of the tree.
type Node interface {
	Kind() Kind
	// Line is the 1-based source line where the node starts.
	Line() int
}

// Stmt is a statement-level node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// FuncLike is implemented by declarations with a parameter list and a body.
type FuncLike interface {
	Node
	FuncName() string
	FuncParams() []*Param
	FuncStmts() []Stmt
}

// Position records where a node starts in the source file.
type Position struct {
	StartLine int
}

// Line implements Node.
func (p Position) Line() int { return p.StartLine }

// At returns a Position for the given 1-based line.
func At(line int) Position { return Position{StartLine: line} }

// -- Statements --

// File is the root of a parsed source file.
type File struct {
	Position
	Name  string
	Stmts []Stmt
}

// Namespace is a `namespace` block. Name is empty for the unnamed form.
type Namespace struct {
	Position
	Name  string
	Stmts []Stmt
}

// Function is a named function declaration.
type Function struct {
	Position
	Name   string
	Params []*Param
	Stmts  []Stmt
	ByRef  bool
}

// Param is a formal parameter. Name includes the leading "$".
type Param struct {
	Position
	Name     string
	Default  Expr
	ByRef    bool
	Variadic bool
}

// Class is a class, interface or trait declaration.
type Class struct {
	Position
	Name    string
	Extends string
	Stmts   []Stmt
}

// Method is a method declared inside a class body.
type Method struct {
	Position
	Name   string
	Params []*Param
	Stmts  []Stmt
	Static bool
}

// PropertyDecl declares one or more class properties.
type PropertyDecl struct {
	Position
	Props  []*PropertyItem
	Static bool
}

// PropertyItem is a single property of a PropertyDecl. Name includes the "$".
type PropertyItem struct {
	Position
	Name    string
	Default Expr
}

// Global is a `global $a, $b;` statement.
type Global struct {
	Position
	Vars []*Variable
}

// StaticVar is a function-scoped `static $a = 1;` statement.
type StaticVar struct {
	Position
	Vars []*StaticVarItem
}

// StaticVarItem is a single variable of a StaticVar statement.
type StaticVarItem struct {
	Position
	Var     *Variable
	Default Expr
}

// Const is a `const A = 1, B = 2;` statement at namespace or class level.
type Const struct {
	Position
	Consts []*ConstItem
}

// ConstItem is a single constant of a Const statement.
type ConstItem struct {
	Position
	Name  string
	Value Expr
}

// Return is a `return` statement. Expr is nil for a bare return.
type Return struct {
	Position
	Expr Expr
}

// If is an if statement. Else holds either another *If (for elseif chains)
// or a *Block, and is nil when absent.
type If struct {
	Position
	Cond  Expr
	Stmts []Stmt
	Else  Stmt
}

// Block groups statements without introducing a scope.
type Block struct {
	Position
	Stmts []Stmt
}

// Loop covers while, do-while and for statements.
type Loop struct {
	Position
	Init  []Expr
	Cond  []Expr
	Step  []Expr
	Stmts []Stmt
}

// Foreach is a foreach statement. Key is nil when the loop has no key.
type Foreach struct {
	Position
	Expr  Expr
	Key   Expr
	Value Expr
	ByRef bool
	Stmts []Stmt
}

// Switch is a switch statement.
type Switch struct {
	Position
	Cond  Expr
	Cases []*Case
}

// Case is a case arm of a Switch. Cond is nil for `default`.
type Case struct {
	Position
	Cond  Expr
	Stmts []Stmt
}

// Try is a try/catch/finally statement.
type Try struct {
	Position
	Stmts   []Stmt
	Catches []*Catch
	Finally []Stmt
}

// Catch is a catch clause. Var may be nil (PHP 8 non-capturing catch).
type Catch struct {
	Position
	Types []string
	Var   *Variable
	Stmts []Stmt
}

// Echo is an echo statement.
type Echo struct {
	Position
	Exprs []Expr
}

// Unset is an `unset(...)` statement.
type Unset struct {
	Position
	Vars []Expr
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Position
	Expr Expr
}

// BadStmt stands in for a statement kind the tree does not model.
type BadStmt struct {
	Position
	Type string
}

// -- Expressions --

// Variable is a variable reference. Name includes the leading "$". For
// variable-variables (`$$x`, `${expr}`) Name is empty and NameExpr holds the
// computed name.
type Variable struct {
	Position
	Name     string
	NameExpr Expr
}

// LiteralKind enumerates scalar literal types.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitInt
	LitFloat
	LitBool
	LitNull
)

// Literal is a scalar literal without interpolation.
type Literal struct {
	Position
	Type  LiteralKind
	Value string
}

// Interpolated is a double-quoted string, heredoc or backtick string
// containing embedded expressions. Literal fragments are kept as *Literal.
type Interpolated struct {
	Position
	Parts []Expr
}

// ConstFetch reads a global or namespaced constant such as `PHP_EOL`.
type ConstFetch struct {
	Position
	Name string
}

// ClassConstFetch reads a class constant such as `Foo::BAR`.
type ClassConstFetch struct {
	Position
	Class string
	Name  string
}

// Assign is `$a = expr` or, with ByRef, `$a = &expr`.
type Assign struct {
	Position
	Var   Expr
	Expr  Expr
	ByRef bool
}

// AssignOp is a compound assignment such as `$a .= expr`.
type AssignOp struct {
	Position
	Op   string
	Var  Expr
	Expr Expr
}

// IncDec is a pre/post increment or decrement.
type IncDec struct {
	Position
	Op     string
	Prefix bool
	Var    Expr
}

// Unary is a unary operator applied to an operand.
type Unary struct {
	Position
	Op   string
	Expr Expr
}

// Binary is a binary operator expression.
type Binary struct {
	Position
	Op    string
	Left  Expr
	Right Expr
}

// Cast is an explicit type cast. Type is the lower-cased target, e.g. "int".
type Cast struct {
	Position
	Type string
	Expr Expr
}

// Array is an array literal in either `array(...)` or `[...]` form.
type Array struct {
	Position
	Items []*ArrayItem
}

// ArrayItem is one element of an Array or List.
type ArrayItem struct {
	Position
	Key    Expr
	Value  Expr
	ByRef  bool
	Unpack bool
}

// ArrayDimFetch is `$a[dim]`. Dim is nil for the append form `$a[]`.
type ArrayDimFetch struct {
	Position
	Var Expr
	Dim Expr
}

// PropertyFetch is `$obj->name`.
type PropertyFetch struct {
	Position
	Var  Expr
	Name string
}

// StaticPropertyFetch is `Class::$name`.
type StaticPropertyFetch struct {
	Position
	Class string
	Name  string
}

// Arg is a call argument.
type Arg struct {
	Position
	Value  Expr
	Unpack bool
	// Name is set for PHP 8 named arguments.
	Name string
}

// FuncCall is a call to a named or computed function. Language constructs
// that behave like calls (print, exit, include, backticks) are represented
// as FuncCall with the construct's name.
type FuncCall struct {
	Position
	Name     string
	NameExpr Expr
	Args     []*Arg
}

// MethodCall is `$obj->name(args)`.
type MethodCall struct {
	Position
	Var  Expr
	Name string
	Args []*Arg
}

// StaticCall is `Class::name(args)`.
type StaticCall struct {
	Position
	Class string
	Name  string
	Args  []*Arg
}

// New is an object instantiation.
type New struct {
	Position
	Class string
	Args  []*Arg
}

// Ternary is `cond ? if : else`. If is nil for the short form `cond ?: else`.
type Ternary struct {
	Position
	Cond Expr
	If   Expr
	Else Expr
}

// Eval is an `eval(expr)` construct.
type Eval struct {
	Position
	Expr Expr
}

// Closure is an anonymous function or an arrow function. Arrow functions
// carry their single expression in Stmts as a *Return.
type Closure struct {
	Position
	Params []*Param
	Uses   []*ClosureUse
	Stmts  []Stmt
	Arrow  bool
	Static bool
}

// ClosureUse is one variable captured by a closure's `use` clause.
type ClosureUse struct {
	Position
	Var   *Variable
	ByRef bool
}

// List is a destructuring target, `list($a, $b)` or `[$a, $b]` on the left
// of an assignment.
type List struct {
	Position
	Items []*ArrayItem
}

// BadExpr stands in for an expression kind the tree does not model.
type BadExpr struct {
	Position
	Type string
}

func (*File) stmtNode()         {}
func (*Namespace) stmtNode()    {}
func (*Function) stmtNode()     {}
func (*Class) stmtNode()        {}
func (*Method) stmtNode()       {}
func (*PropertyDecl) stmtNode() {}
func (*Global) stmtNode()       {}
func (*StaticVar) stmtNode()    {}
func (*Const) stmtNode()        {}
func (*Return) stmtNode()       {}
func (*If) stmtNode()           {}
func (*Block) stmtNode()        {}
func (*Loop) stmtNode()         {}
func (*Foreach) stmtNode()      {}
func (*Switch) stmtNode()       {}
func (*Try) stmtNode()          {}
func (*Echo) stmtNode()         {}
func (*Unset) stmtNode()        {}
func (*ExprStmt) stmtNode()     {}
func (*BadStmt) stmtNode()      {}

func (*Variable) exprNode()            {}
func (*Literal) exprNode()             {}
func (*Interpolated) exprNode()        {}
func (*ConstFetch) exprNode()          {}
func (*ClassConstFetch) exprNode()     {}
func (*Assign) exprNode()              {}
func (*AssignOp) exprNode()            {}
func (*IncDec) exprNode()              {}
func (*Unary) exprNode()               {}
func (*Binary) exprNode()              {}
func (*Cast) exprNode()                {}
func (*Array) exprNode()               {}
func (*ArrayDimFetch) exprNode()       {}
func (*PropertyFetch) exprNode()       {}
func (*StaticPropertyFetch) exprNode() {}
func (*FuncCall) exprNode()            {}
func (*MethodCall) exprNode()          {}
func (*StaticCall) exprNode()          {}
func (*New) exprNode()                 {}
func (*Ternary) exprNode()             {}
func (*Eval) exprNode()                {}
func (*Closure) exprNode()             {}
func (*List) exprNode()                {}
func (*BadExpr) exprNode()             {}

func (f *Function) FuncName() string     { return f.Name }
func (f *Function) FuncParams() []*Param { return f.Params }
func (f *Function) FuncStmts() []Stmt    { return f.Stmts }

func (m *Method) FuncName() string     { return m.Name }
func (m *Method) FuncParams() []*Param { return m.Params }
func (m *Method) FuncStmts() []Stmt    { return m.Stmts }

func (c *Closure) FuncName() string     { return "{closure}" }
func (c *Closure) FuncParams() []*Param { return c.Params }
func (c *Closure) FuncStmts() []Stmt    { return c.Stmts }

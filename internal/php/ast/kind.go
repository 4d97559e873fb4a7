package ast

import "strconv"

// Kind identifies the concrete type of a Node.
type Kind int

const (
	KindInvalid Kind = iota
	KindFile
	KindNamespace
	KindFunction
	KindParam
	KindClass
	KindMethod
	KindPropertyDecl
	KindPropertyItem
	KindGlobal
	KindStaticVar
	KindStaticVarItem
	KindConst
	KindConstItem
	KindReturn
	KindIf
	KindBlock
	KindLoop
	KindForeach
	KindSwitch
	KindCase
	KindTry
	KindCatch
	KindEcho
	KindUnset
	KindExprStmt
	KindBadStmt
	KindVariable
	KindLiteral
	KindInterpolated
	KindConstFetch
	KindClassConstFetch
	KindAssign
	KindAssignOp
	KindIncDec
	KindUnary
	KindBinary
	KindCast
	KindArray
	KindArrayItem
	KindArrayDimFetch
	KindPropertyFetch
	KindStaticPropertyFetch
	KindArg
	KindFuncCall
	KindMethodCall
	KindStaticCall
	KindNew
	KindTernary
	KindEval
	KindClosure
	KindClosureUse
	KindList
	KindBadExpr
)

var kindNames = [...]string{
	KindInvalid: "Invalid",
	KindFile: "File",
	KindNamespace: "Namespace",
	KindFunction: "Function",
	KindParam: "Param",
	KindClass: "Class",
	KindMethod: "Method",
	KindPropertyDecl: "PropertyDecl",
	KindPropertyItem: "PropertyItem",
	KindGlobal: "Global",
	KindStaticVar: "StaticVar",
	KindStaticVarItem: "StaticVarItem",
	KindConst: "Const",
	KindConstItem: "ConstItem",
	KindReturn: "Return",
	KindIf: "If",
	KindBlock: "Block",
	KindLoop: "Loop",
	KindForeach: "Foreach",
	KindSwitch: "Switch",
	KindCase: "Case",
	KindTry: "Try",
	KindCatch: "Catch",
	KindEcho: "Echo",
	KindUnset: "Unset",
	KindExprStmt: "ExprStmt",
	KindBadStmt: "BadStmt",
	KindVariable: "Variable",
	KindLiteral: "Literal",
	KindInterpolated: "Interpolated",
	KindConstFetch: "ConstFetch",
	KindClassConstFetch: "ClassConstFetch",
	KindAssign: "Assign",
	KindAssignOp: "AssignOp",
	KindIncDec: "IncDec",
	KindUnary: "Unary",
	KindBinary: "Binary",
	KindCast: "Cast",
	KindArray: "Array",
	KindArrayItem: "ArrayItem",
	KindArrayDimFetch: "ArrayDimFetch",
	KindPropertyFetch: "PropertyFetch",
	KindStaticPropertyFetch: "StaticPropertyFetch",
	KindArg: "Arg",
	KindFuncCall: "FuncCall",
	KindMethodCall: "MethodCall",
	KindStaticCall: "StaticCall",
	KindNew: "New",
	KindTernary: "Ternary",
	KindEval: "Eval",
	KindClosure: "Closure",
	KindClosureUse: "ClosureUse",
	KindList: "List",
	KindBadExpr: "BadExpr",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (*File) Kind() Kind                { return KindFile }
func (*Namespace) Kind() Kind           { return KindNamespace }
func (*Function) Kind() Kind            { return KindFunction }
func (*Param) Kind() Kind               { return KindParam }
func (*Class) Kind() Kind               { return KindClass }
func (*Method) Kind() Kind              { return KindMethod }
func (*PropertyDecl) Kind() Kind        { return KindPropertyDecl }
func (*PropertyItem) Kind() Kind        { return KindPropertyItem }
func (*Global) Kind() Kind              { return KindGlobal }
func (*StaticVar) Kind() Kind           { return KindStaticVar }
func (*StaticVarItem) Kind() Kind       { return KindStaticVarItem }
func (*Const) Kind() Kind               { return KindConst }
func (*ConstItem) Kind() Kind           { return KindConstItem }
func (*Return) Kind() Kind              { return KindReturn }
func (*If) Kind() Kind                  { return KindIf }
func (*Block) Kind() Kind               { return KindBlock }
func (*Loop) Kind() Kind                { return KindLoop }
func (*Foreach) Kind() Kind             { return KindForeach }
func (*Switch) Kind() Kind              { return KindSwitch }
func (*Case) Kind() Kind                { return KindCase }
func (*Try) Kind() Kind                 { return KindTry }
func (*Catch) Kind() Kind               { return KindCatch }
func (*Echo) Kind() Kind                { return KindEcho }
func (*Unset) Kind() Kind               { return KindUnset }
func (*ExprStmt) Kind() Kind            { return KindExprStmt }
func (*BadStmt) Kind() Kind             { return KindBadStmt }
func (*Variable) Kind() Kind            { return KindVariable }
func (*Literal) Kind() Kind             { return KindLiteral }
func (*Interpolated) Kind() Kind        { return KindInterpolated }
func (*ConstFetch) Kind() Kind          { return KindConstFetch }
func (*ClassConstFetch) Kind() Kind     { return KindClassConstFetch }
func (*Assign) Kind() Kind              { return KindAssign }
func (*AssignOp) Kind() Kind            { return KindAssignOp }
func (*IncDec) Kind() Kind              { return KindIncDec }
func (*Unary) Kind() Kind               { return KindUnary }
func (*Binary) Kind() Kind              { return KindBinary }
func (*Cast) Kind() Kind                { return KindCast }
func (*Array) Kind() Kind               { return KindArray }
func (*ArrayItem) Kind() Kind           { return KindArrayItem }
func (*ArrayDimFetch) Kind() Kind       { return KindArrayDimFetch }
func (*PropertyFetch) Kind() Kind       { return KindPropertyFetch }
func (*StaticPropertyFetch) Kind() Kind { return KindStaticPropertyFetch }
func (*Arg) Kind() Kind                 { return KindArg }
func (*FuncCall) Kind() Kind            { return KindFuncCall }
func (*MethodCall) Kind() Kind          { return KindMethodCall }
func (*StaticCall) Kind() Kind          { return KindStaticCall }
func (*New) Kind() Kind                 { return KindNew }
func (*Ternary) Kind() Kind             { return KindTernary }
func (*Eval) Kind() Kind                { return KindEval }
func (*Closure) Kind() Kind             { return KindClosure }
func (*ClosureUse) Kind() Kind          { return KindClosureUse }
func (*List) Kind() Kind                { return KindList }
func (*BadExpr) Kind() Kind             { return KindBadExpr }

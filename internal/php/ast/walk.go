package ast

// Visitor is driven by Walk. Enter is called before a node's children are
// visited; returning false skips them, and Leave is then not called either.
type Visitor interface {
	Enter(n Node) bool
	Leave(n Node)
}

// Walk traverses the tree rooted at n depth-first in source order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if !v.Enter(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(v, c)
	}
	v.Leave(n)
}

type inspector func(Node) bool

func (f inspector) Enter(n Node) bool { return f(n) }
func (f inspector) Leave(Node)        {}

// Inspect calls f for every node of the tree in depth-first order. If f
// returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	Walk(inspector(f), n)
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var c children
	switch n := n.(type) {
	case *File:
		c.stmts(n.Stmts)
	case *Namespace:
		c.stmts(n.Stmts)
	case *Function:
		c.params(n.Params)
		c.stmts(n.Stmts)
	case *Param:
		c.expr(n.Default)
	case *Class:
		c.stmts(n.Stmts)
	case *Method:
		c.params(n.Params)
		c.stmts(n.Stmts)
	case *PropertyDecl:
		for _, p := range n.Props {
			c.add(p)
		}
	case *PropertyItem:
		c.expr(n.Default)
	case *Global:
		for _, v := range n.Vars {
			c.add(v)
		}
	case *StaticVar:
		for _, v := range n.Vars {
			c.add(v)
		}
	case *StaticVarItem:
		if n.Var != nil {
			c.add(n.Var)
		}
		c.expr(n.Default)
	case *Const:
		for _, k := range n.Consts {
			c.add(k)
		}
	case *ConstItem:
		c.expr(n.Value)
	case *Return:
		c.expr(n.Expr)
	case *If:
		c.expr(n.Cond)
		c.stmts(n.Stmts)
		c.stmt(n.Else)
	case *Block:
		c.stmts(n.Stmts)
	case *Loop:
		c.exprs(n.Init)
		c.exprs(n.Cond)
		c.exprs(n.Step)
		c.stmts(n.Stmts)
	case *Foreach:
		c.expr(n.Expr)
		c.expr(n.Key)
		c.expr(n.Value)
		c.stmts(n.Stmts)
	case *Switch:
		c.expr(n.Cond)
		for _, k := range n.Cases {
			c.add(k)
		}
	case *Case:
		c.expr(n.Cond)
		c.stmts(n.Stmts)
	case *Try:
		c.stmts(n.Stmts)
		for _, k := range n.Catches {
			c.add(k)
		}
		c.stmts(n.Finally)
	case *Catch:
		if n.Var != nil {
			c.add(n.Var)
		}
		c.stmts(n.Stmts)
	case *Echo:
		c.exprs(n.Exprs)
	case *Unset:
		c.exprs(n.Vars)
	case *ExprStmt:
		c.expr(n.Expr)

	case *Variable:
		c.expr(n.NameExpr)
	case *Interpolated:
		c.exprs(n.Parts)
	case *Assign:
		c.expr(n.Var)
		c.expr(n.Expr)
	case *AssignOp:
		c.expr(n.Var)
		c.expr(n.Expr)
	case *IncDec:
		c.expr(n.Var)
	case *Unary:
		c.expr(n.Expr)
	case *Binary:
		c.expr(n.Left)
		c.expr(n.Right)
	case *Cast:
		c.expr(n.Expr)
	case *Array:
		c.items(n.Items)
	case *ArrayItem:
		c.expr(n.Key)
		c.expr(n.Value)
	case *ArrayDimFetch:
		c.expr(n.Var)
		c.expr(n.Dim)
	case *PropertyFetch:
		c.expr(n.Var)
	case *Arg:
		c.expr(n.Value)
	case *FuncCall:
		c.expr(n.NameExpr)
		c.args(n.Args)
	case *MethodCall:
		c.expr(n.Var)
		c.args(n.Args)
	case *StaticCall:
		c.args(n.Args)
	case *New:
		c.args(n.Args)
	case *Ternary:
		c.expr(n.Cond)
		c.expr(n.If)
		c.expr(n.Else)
	case *Eval:
		c.expr(n.Expr)
	case *Closure:
		c.params(n.Params)
		for _, u := range n.Uses {
			c.add(u)
		}
		c.stmts(n.Stmts)
	case *ClosureUse:
		if n.Var != nil {
			c.add(n.Var)
		}
	case *List:
		c.items(n.Items)
	}
	return c
}

// children accumulates non-nil child nodes.
type children []Node

func (c *children) add(n Node) { *c = append(*c, n) }

func (c *children) expr(e Expr) {
	if e != nil {
		c.add(e)
	}
}

func (c *children) stmt(s Stmt) {
	if s != nil {
		c.add(s)
	}
}

func (c *children) exprs(es []Expr) {
	for _, e := range es {
		c.expr(e)
	}
}

func (c *children) stmts(ss []Stmt) {
	for _, s := range ss {
		c.stmt(s)
	}
}

func (c *children) params(ps []*Param) {
	for _, p := range ps {
		c.add(p)
	}
}

func (c *children) args(as []*Arg) {
	for _, a := range as {
		c.add(a)
	}
}

func (c *children) items(is []*ArrayItem) {
	for _, i := range is {
		if i != nil {
			c.add(i)
		}
	}
}

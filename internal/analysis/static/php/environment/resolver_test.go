package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

func variable(name string, line int) *ast.Variable {
	return &ast.Variable{Position: ast.At(line), Name: name}
}

func str(value string, line int) *ast.Literal {
	return &ast.Literal{Position: ast.At(line), Type: ast.LitString, Value: value}
}

func resolve(t *testing.T, stmts ...ast.Stmt) (*Annotations, error) {
	t.Helper()
	return Resolve(zaptest.NewLogger(t), &ast.File{Position: ast.At(1), Stmts: stmts})
}

// bindingAt resolves v through the environment annotated on v itself.
func bindingAt(t *testing.T, a *Annotations, v *ast.Variable) (*Binding, error) {
	t.Helper()
	env, ok := a.Lookup(v)
	require.True(t, ok, "variable %s on line %d was not annotated", v.Name, v.Line())
	return env.ResolveVariable(v.Name)
}

func TestResolverBindsAssignments(t *testing.T) {
	// $a = $_GET['q'];
	// function f($p) { return $a . $p; }
	// echo $a;
	assign := &ast.Assign{
		Position: ast.At(1),
		Var:      variable("$a", 1),
		Expr:     &ast.ArrayDimFetch{Position: ast.At(1), Var: variable("$_GET", 1), Dim: str("q", 1)},
	}
	innerA, innerP := variable("$a", 2), variable("$p", 2)
	fn := &ast.Function{
		Position: ast.At(2),
		Name:     "f",
		Params:   []*ast.Param{{Position: ast.At(2), Name: "$p"}},
		Stmts:    []ast.Stmt{&ast.Return{Position: ast.At(2), Expr: &ast.Binary{Position: ast.At(2), Op: ".", Left: innerA, Right: innerP}}},
	}
	echoed := variable("$a", 3)

	a, err := resolve(t,
		&ast.ExprStmt{Position: ast.At(1), Expr: assign},
		fn,
		&ast.Echo{Position: ast.At(3), Exprs: []ast.Expr{echoed}},
	)
	require.NoError(t, err)

	b, err := bindingAt(t, a, echoed)
	require.NoError(t, err)
	assert.Equal(t, BindValue, b.Kind)
	assert.Same(t, assign, b.Node)

	_, err = bindingAt(t, a, innerA)
	assert.ErrorIs(t, err, ErrUnboundIdentifier, "function bodies must not see globals")

	p, err := bindingAt(t, a, innerP)
	require.NoError(t, err)
	assert.Equal(t, BindParameter, p.Kind)

	decl, err := a.Global().ResolveFunction("f")
	require.NoError(t, err)
	assert.Same(t, fn, decl)

	fnEnv, ok := a.Lookup(fn)
	require.True(t, ok)
	assert.Equal(t, "f", fnEnv.Name())
}

func TestResolverRightHandSideSeesPreviousBinding(t *testing.T) {
	// $i = "a"; $i = $i . "b";
	first := &ast.Assign{Position: ast.At(1), Var: variable("$i", 1), Expr: str("a", 1)}
	rhs := variable("$i", 2)
	second := &ast.Assign{Position: ast.At(2), Var: variable("$i", 2), Expr: &ast.Binary{Position: ast.At(2), Op: ".", Left: rhs, Right: str("b", 2)}}

	a, err := resolve(t, &ast.ExprStmt{Expr: first}, &ast.ExprStmt{Expr: second})
	require.NoError(t, err)

	b, err := bindingAt(t, a, rhs)
	require.NoError(t, err)
	assert.Same(t, first, b.Node)

	after, ok := a.Lookup(second)
	require.True(t, ok)
	b, err = after.ResolveVariable("$i")
	require.NoError(t, err)
	assert.Same(t, second, b.Node)
}

func TestResolverGlobalStatementAliasesBinding(t *testing.T) {
	// $db = "conn"; function f() { global $db, $missing; return $db; }
	assign := &ast.Assign{Position: ast.At(1), Var: variable("$db", 1), Expr: str("conn", 1)}
	used := variable("$db", 2)
	missing := variable("$missing", 2)
	fn := &ast.Function{
		Position: ast.At(2),
		Name:     "f",
		Stmts: []ast.Stmt{
			&ast.Global{Position: ast.At(2), Vars: []*ast.Variable{variable("$db", 2), missing}},
			&ast.Return{Position: ast.At(2), Expr: used},
		},
	}

	a, err := resolve(t, &ast.ExprStmt{Expr: assign}, fn)
	require.NoError(t, err)

	inner, err := bindingAt(t, a, used)
	require.NoError(t, err)
	globalEnv, ok := a.Lookup(assign)
	require.True(t, ok)
	outer, err := globalEnv.ResolveVariable("$db")
	require.NoError(t, err)
	assert.Same(t, outer, inner, "global must share the binding, not copy it")
	assert.Same(t, assign, inner.Node)

	m, err := bindingAt(t, a, missing)
	require.NoError(t, err)
	assert.Equal(t, BindGlobal, m.Kind)
}

func TestResolverUnset(t *testing.T) {
	after := variable("$a", 3)
	a, err := resolve(t,
		&ast.ExprStmt{Expr: &ast.Assign{Position: ast.At(1), Var: variable("$a", 1), Expr: str("x", 1)}},
		&ast.Unset{Position: ast.At(2), Vars: []ast.Expr{variable("$a", 2)}},
		&ast.Echo{Position: ast.At(3), Exprs: []ast.Expr{after}},
	)
	require.NoError(t, err)
	_, err = bindingAt(t, a, after)
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}

func TestResolverNamespacesAndClasses(t *testing.T) {
	helper := &ast.Function{Position: ast.At(2), Name: "helper"}
	prop := &ast.PropertyItem{Position: ast.At(4), Name: "$name"}
	method := &ast.Method{Position: ast.At(5), Name: "save"}
	class := &ast.Class{
		Position: ast.At(3),
		Name:     "User",
		Stmts: []ast.Stmt{
			&ast.PropertyDecl{Position: ast.At(4), Props: []*ast.PropertyItem{prop}},
			method,
		},
	}
	a, err := resolve(t, &ast.Namespace{Position: ast.At(1), Name: `App\Models`, Stmts: []ast.Stmt{helper, class}})
	require.NoError(t, err)

	g := a.Global()
	fn, err := g.ResolveFunction(`App\Models\helper`)
	require.NoError(t, err)
	assert.Same(t, helper, fn)

	classEnv, err := g.ResolveClass(`\App\Models\user`)
	require.NoError(t, err)
	_, err = classEnv.ResolveProperty("$name")
	assert.NoError(t, err)
	b, err := classEnv.ResolveVariable("$name")
	require.NoError(t, err, "a declared property is a variable of the class scope")
	assert.Equal(t, BindValue, b.Kind)
	assert.Same(t, prop, b.Node)
	_, err = classEnv.ResolveMethod("SAVE")
	assert.NoError(t, err)

	mEnv, ok := a.Lookup(method)
	require.True(t, ok)
	assert.Equal(t, `App\Models\User::save`, mEnv.Name())
}

func TestResolverForeachAndList(t *testing.T) {
	loop := &ast.Foreach{
		Position: ast.At(1),
		Expr:     variable("$_POST", 1),
		Key:      variable("$k", 1),
		Value:    variable("$v", 1),
	}
	usedV := variable("$v", 2)
	loop.Stmts = []ast.Stmt{&ast.Echo{Position: ast.At(2), Exprs: []ast.Expr{usedV}}}

	list := &ast.Assign{
		Position: ast.At(3),
		Var: &ast.List{Position: ast.At(3), Items: []*ast.ArrayItem{
			{Value: variable("$x", 3)},
			nil,
			{Value: variable("$y", 3)},
		}},
		Expr: variable("$_GET", 3),
	}
	usedY := variable("$y", 4)

	a, err := resolve(t, loop, &ast.ExprStmt{Expr: list}, &ast.Echo{Position: ast.At(4), Exprs: []ast.Expr{usedY}})
	require.NoError(t, err)

	b, err := bindingAt(t, a, usedV)
	require.NoError(t, err)
	assert.Same(t, loop, b.Node)

	b, err = bindingAt(t, a, usedY)
	require.NoError(t, err)
	assert.Same(t, list, b.Node)
}

func TestResolverClosureUse(t *testing.T) {
	outer := &ast.Assign{Position: ast.At(1), Var: variable("$a", 1), Expr: str("x", 1)}
	inner := variable("$a", 2)
	closure := &ast.Closure{
		Position: ast.At(2),
		Uses:     []*ast.ClosureUse{{Position: ast.At(2), Var: variable("$a", 2)}},
		Stmts:    []ast.Stmt{&ast.Return{Position: ast.At(2), Expr: inner}},
	}
	a, err := resolve(t,
		&ast.ExprStmt{Expr: outer},
		&ast.ExprStmt{Expr: &ast.Assign{Position: ast.At(2), Var: variable("$f", 2), Expr: closure}},
	)
	require.NoError(t, err)

	b, err := bindingAt(t, a, inner)
	require.NoError(t, err)
	assert.Same(t, outer, b.Node)
}

func TestResolverStructuralErrors(t *testing.T) {
	_, err := resolve(t, &ast.Method{Position: ast.At(1), Name: "orphan"})
	assert.ErrorIs(t, err, ErrStructuralInvariant)

	_, err = resolve(t, &ast.PropertyDecl{Position: ast.At(1), Props: []*ast.PropertyItem{{Name: "$p"}}})
	assert.ErrorIs(t, err, ErrStructuralInvariant)

	r := NewResolver(zaptest.NewLogger(t), NewGlobal())
	r.Leave(&ast.Function{Name: "never_entered"})
	_, err = r.Run(&ast.File{})
	assert.ErrorIs(t, err, ErrStructuralInvariant, "leaving the global environment is fatal")
}

func TestResolverIgnoresUnknownNodes(t *testing.T) {
	bad := &ast.BadStmt{Position: ast.At(1), Type: "goto_statement"}
	used := variable("$a", 2)
	a, err := resolve(t, bad, &ast.Echo{Position: ast.At(2), Exprs: []ast.Expr{used}})
	require.NoError(t, err)

	_, ok := a.Lookup(bad)
	assert.True(t, ok)
	_, err = bindingAt(t, a, used)
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}

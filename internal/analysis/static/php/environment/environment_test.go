package environment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

func assignNode(name string, line int) *ast.Assign {
	return &ast.Assign{
		Position: ast.At(line),
		Var:      &ast.Variable{Position: ast.At(line), Name: name},
		Expr:     &ast.Literal{Position: ast.At(line), Type: ast.LitInt, Value: "1"},
	}
}

func TestDefineVariableByValueKeepsSnapshots(t *testing.T) {
	g := NewGlobal()
	first, second := assignNode("$a", 1), assignNode("$a", 2)

	e1 := g.DefineVariableByValue("$a", first)
	e2 := e1.DefineVariableByValue("$a", second)

	b1, err := e1.ResolveVariable("$a")
	require.NoError(t, err)
	assert.Same(t, first, b1.Node)

	b2, err := e2.ResolveVariable("$a")
	require.NoError(t, err)
	assert.Same(t, second, b2.Node)

	_, err = g.ResolveVariable("$a")
	assert.ErrorIs(t, err, ErrUnboundIdentifier)
}

func TestForkedSiblingsAreIsolated(t *testing.T) {
	g := NewGlobal()
	base := g.DefineVariableByValue("$a", assignNode("$a", 1))
	left := base.DefineVariableByValue("$b", assignNode("$b", 2))
	right := base.DefineVariableByValue("$c", assignNode("$c", 3))

	_, err := left.ResolveVariable("$c")
	assert.Error(t, err)
	_, err = right.ResolveVariable("$b")
	assert.Error(t, err)

	// Both still see the shared ancestor binding.
	bl, err := left.ResolveVariable("$a")
	require.NoError(t, err)
	br, err := right.ResolveVariable("$a")
	require.NoError(t, err)
	assert.Same(t, bl, br)
}

func TestUnsetVariable(t *testing.T) {
	g := NewGlobal()
	e1 := g.DefineVariableByValue("$a", assignNode("$a", 1))
	e2 := e1.UnsetVariable("$a")

	_, err := e2.ResolveVariable("$a")
	require.Error(t, err)
	var unboundErr *UnboundIdentifierError
	require.True(t, errors.As(err, &unboundErr))
	assert.Equal(t, KindVariable, unboundErr.Kind)
	assert.Equal(t, "$a", unboundErr.Name)

	_, err = e1.ResolveVariable("$a")
	assert.NoError(t, err, "unset must not affect earlier snapshots")

	e3 := e2.DefineVariableByValue("$a", assignNode("$a", 3))
	_, err = e3.ResolveVariable("$a")
	assert.NoError(t, err)
}

func TestFunctionScopeIsABoundary(t *testing.T) {
	g := NewGlobal()
	outer := g.DefineVariableByValue("$secret", assignNode("$secret", 1))
	param := &ast.Param{Position: ast.At(2), Name: "$p"}
	decl := &ast.Function{Position: ast.At(2), Name: "f", Params: []*ast.Param{param}}

	fnEnv, err := outer.CreateFunction(decl)
	require.NoError(t, err)

	_, err = fnEnv.ResolveVariable("$secret")
	assert.ErrorIs(t, err, ErrUnboundIdentifier)

	p, err := fnEnv.ResolveVariable("$p")
	require.NoError(t, err)
	assert.Equal(t, BindParameter, p.Kind)
	assert.Same(t, param, p.Node)

	// Superglobals are aliased, not copied.
	inner, err := fnEnv.ResolveVariable("$_GET")
	require.NoError(t, err)
	root, err := g.ResolveVariable("$_GET")
	require.NoError(t, err)
	assert.Same(t, root, inner)
	assert.True(t, g.IsSuperglobal("$_GET", inner))

	// A fork of the function scope still stops at the boundary.
	forked := fnEnv.DefineVariableByValue("$x", assignNode("$x", 3))
	_, err = forked.ResolveVariable("$secret")
	assert.Error(t, err)
	_, err = forked.ResolveVariable("$p")
	assert.NoError(t, err)

	got, err := g.ResolveFunction("F")
	require.NoError(t, err)
	assert.Same(t, decl, got)
}

func TestNamespaceResolution(t *testing.T) {
	g := NewGlobal()
	nsB := g.CreateNamespace(`\A\B`)
	nsA, err := g.ResolveNamespace("A")
	require.NoError(t, err)

	decl := &ast.Function{Position: ast.At(1), Name: "Foo"}
	_, err = nsB.CreateFunction(decl)
	require.NoError(t, err)

	cases := []struct {
		from Environment
		name string
	}{
		{g, `A\B\foo`},
		{g, `\A\B\FOO`},
		{nsA, `B\foo`},
		{nsB, "foo"},
		{nsB, `\A\B\foo`},
		{nsB.DefineVariableByValue("$x", assignNode("$x", 1)), "foo"},
	}
	for _, tc := range cases {
		got, err := tc.from.ResolveFunction(tc.name)
		require.NoError(t, err, tc.name)
		assert.Same(t, decl, got, tc.name)
	}

	_, err = g.ResolveFunction("foo")
	assert.ErrorIs(t, err, ErrUnboundIdentifier, "unqualified lookups do not search child namespaces")

	_, err = g.ResolveFunction(`Missing\foo`)
	var unboundErr *UnboundIdentifierError
	require.ErrorAs(t, err, &unboundErr)
	assert.Equal(t, KindNamespace, unboundErr.Kind)

	assert.Same(t, nsB, g.CreateNamespace(`A\b`), "reopening a namespace reuses it")
	assert.Equal(t, `A\B`, nsB.Name())
	assert.Same(t, nsA, nsB.Parent())
}

func TestContinuationDelegatesToNamespace(t *testing.T) {
	g := NewGlobal()
	ns := g.CreateNamespace("App")

	c1 := ns.DefineVariableByValue("$a", assignNode("$a", 1))
	c2 := c1.DefineVariableByValue("$b", assignNode("$b", 2))
	require.IsType(t, &ContinuationEnvironment{}, c1)
	require.IsType(t, &ContinuationEnvironment{}, c2)

	got, err := c2.Namespace()
	require.NoError(t, err)
	assert.Same(t, ns, got)

	decl := &ast.Function{Position: ast.At(3), Name: "helper"}
	_, err = c2.CreateFunction(decl)
	require.NoError(t, err)
	resolved, err := ns.ResolveFunction("helper")
	require.NoError(t, err)
	assert.Same(t, decl, resolved)

	require.NoError(t, c2.DefineConstant(&ast.ConstItem{Name: "VERSION"}))
	_, err = ns.ResolveConstant("VERSION")
	assert.NoError(t, err)
	_, err = ns.ResolveConstant("version")
	assert.Error(t, err, "constants are case-sensitive")
}

func TestContinuationWithoutNamespace(t *testing.T) {
	orphan := &ContinuationEnvironment{}
	orphan.chain = newChain(orphan, nil, "orphan", false)

	_, err := orphan.Namespace()
	assert.ErrorIs(t, err, ErrStructuralInvariant)
	_, err = orphan.ResolveFunction("f")
	assert.ErrorIs(t, err, ErrStructuralInvariant)
}

func TestGlobalChildIsContinuation(t *testing.T) {
	g := NewGlobal()
	child := g.CreateChild()
	require.IsType(t, &ContinuationEnvironment{}, child)
	assert.Same(t, g, child.Parent())
	assert.Same(t, g, child.Global())
	assert.Nil(t, g.Parent())
	assert.Equal(t, `\`, g.Name())
	assert.ElementsMatch(t, Superglobals, g.LocalVariables())
}

func TestClassEnvironment(t *testing.T) {
	g := NewGlobal()
	decl := &ast.Class{Position: ast.At(1), Name: "User"}
	class, err := g.CreateClass(decl)
	require.NoError(t, err)

	got, err := g.ResolveClass("user")
	require.NoError(t, err)
	assert.Same(t, class, got)

	method := &ast.Method{Position: ast.At(2), Name: "Save", Params: []*ast.Param{{Name: "$db"}}}
	mEnv := class.CreateMethod(method)
	_, err = mEnv.ResolveVariable("$db")
	assert.NoError(t, err)
	_, err = mEnv.ResolveVariable("$this")
	assert.NoError(t, err)

	m, err := class.ResolveMethod("save")
	require.NoError(t, err)
	assert.Same(t, method, m)

	prop := &ast.PropertyItem{Name: "$name"}
	class.DefineProperty(prop)
	p, err := class.ResolveProperty("name")
	require.NoError(t, err)
	assert.Same(t, prop, p)
	_, err = class.ResolveProperty("missing")
	assert.ErrorIs(t, err, ErrUnboundIdentifier)

	b, err := class.ResolveVariable("$name")
	require.NoError(t, err)
	assert.Same(t, prop, b.Node)
	_, err = class.CreateMethod(&ast.Method{Name: "other"}).ResolveVariable("$name")
	assert.ErrorIs(t, err, ErrUnboundIdentifier, "method bodies do not see properties as plain variables")
}

func TestClosureCaptures(t *testing.T) {
	g := NewGlobal()
	outer := g.DefineVariableByValue("$a", assignNode("$a", 1)).
		DefineVariableByValue("$b", assignNode("$b", 2))
	outerA, err := outer.ResolveVariable("$a")
	require.NoError(t, err)

	closure := &ast.Closure{
		Position: ast.At(3),
		Uses:     []*ast.ClosureUse{{Var: &ast.Variable{Name: "$a"}}, {Var: &ast.Variable{Name: "$nope"}}},
	}
	env := outer.CreateClosure(closure)

	inner, err := env.ResolveVariable("$a")
	require.NoError(t, err)
	assert.Same(t, outerA, inner)

	_, err = env.ResolveVariable("$b")
	assert.Error(t, err, "closures only see captured variables")

	capture, err := env.ResolveVariable("$nope")
	require.NoError(t, err)
	assert.Equal(t, BindCapture, capture.Kind)

	arrow := outer.CreateClosure(&ast.Closure{Position: ast.At(4), Arrow: true})
	_, err = arrow.ResolveVariable("$b")
	assert.NoError(t, err, "arrow functions see the enclosing scope")
}

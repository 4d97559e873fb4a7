package taint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/environment"
	"github.com/xkilldash9x/phortress/internal/php/ast"
	"github.com/xkilldash9x/phortress/internal/php/parser"
)

// stubRegistry is a minimal source and sanitizer catalogue for tests.
type stubRegistry struct{}

func (stubRegistry) IsInputVariable(v *ast.Variable) bool {
	switch v.Name {
	case "$_GET", "$_POST", "$_COOKIE", "$_REQUEST":
		return true
	}
	return false
}

func (stubRegistry) IsInputFunction(name string) bool { return name == "getenv" }

func (stubRegistry) IsSanitisingFunction(name string) bool {
	return name == "htmlspecialchars" || name == "addslashes"
}

func (stubRegistry) IsSanitisingReverseFunction(name string) bool {
	return name == "htmlspecialchars_decode"
}

func (stubRegistry) AffectedSanitiser(name string) string {
	if name == "htmlspecialchars_decode" {
		return "htmlspecialchars"
	}
	return ""
}

type fixture struct {
	file   *ast.File
	engine *Engine
}

func newFixture(t *testing.T, src string, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	file, err := parser.New(logger).ParseString("test.php", src)
	require.NoError(t, err)
	annotations, err := environment.Resolve(logger, file)
	require.NoError(t, err)
	return &fixture{file: file, engine: NewEngine(logger, annotations, stubRegistry{}, opts...)}
}

// call returns the last call to name in the file.
func (f *fixture) call(t *testing.T, name string) *ast.FuncCall {
	t.Helper()
	var found *ast.FuncCall
	ast.Inspect(f.file, func(n ast.Node) bool {
		if c, ok := n.(*ast.FuncCall); ok && strings.EqualFold(c.Name, name) {
			found = c
		}
		return true
	})
	require.NotNil(t, found, "no call to %s", name)
	return found
}

// echoed returns the first expression of the last echo statement.
func (f *fixture) echoed(t *testing.T) ast.Expr {
	t.Helper()
	var found *ast.Echo
	ast.Inspect(f.file, func(n ast.Node) bool {
		if e, ok := n.(*ast.Echo); ok {
			found = e
		}
		return true
	})
	require.NotNil(t, found, "no echo statement")
	require.NotEmpty(t, found.Exprs)
	return found.Exprs[0]
}

// callSite runs the call-site query for the last call to name.
func (f *fixture) callSite(t *testing.T, name string) Result {
	t.Helper()
	c := f.call(t, name)
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(c), c.Name)
	require.NoError(t, err)
	return fa.AnalyseFunctionCall(c.Args)
}

func TestCallSitePassThrough(t *testing.T) {
	f := newFixture(t, `<?php
function f($x) { return $x; }
$r = f($_GET['q']);
`)
	res := f.callSite(t, "f")
	assert.Equal(t, Tainted, res.Taint)
	assert.Empty(t, res.Sanitizers)
}

func TestCallSiteLiteralArgument(t *testing.T) {
	f := newFixture(t, `<?php
function f($x) { return $x; }
f('constant');
`)
	res := f.callSite(t, "f")
	assert.Equal(t, Unassigned, res.Taint)
}

func TestCallSiteSanitizer(t *testing.T) {
	f := newFixture(t, `<?php
function f($a) {
    $b = htmlspecialchars($a);
    return $b;
}
f($_GET['q']);
`)
	res := f.callSite(t, "f")
	assert.Equal(t, Tainted, res.Taint, "sanitizers do not change the classification")
	assert.Equal(t, []string{"htmlspecialchars"}, res.Sanitizers.Names())
}

func TestCallSiteReverseSanitizer(t *testing.T) {
	f := newFixture(t, `<?php
function f($a) {
    $b = htmlspecialchars($a);
    $c = htmlspecialchars_decode($b);
    return $c;
}
f($_GET['q']);
`)
	res := f.callSite(t, "f")
	assert.Equal(t, Tainted, res.Taint)
	assert.Empty(t, res.Sanitizers)
}

func TestCallSiteJoinsEveryReturn(t *testing.T) {
	f := newFixture(t, `<?php
function f($p) {
    return 'literal';
    return addslashes($p);
}
f($_POST['p']);
`)
	c := f.call(t, "f")
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(c), "f")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, fa.ReturnLines())

	lit, ok := fa.Returns(3)
	require.True(t, ok)
	assert.Empty(t, lit)

	res := fa.AnalyseFunctionCall(c.Args)
	assert.Equal(t, Tainted, res.Taint)
	assert.Equal(t, []string{"addslashes"}, res.Sanitizers.Names())
}

func TestOnlyDirectReturnsAreSummarized(t *testing.T) {
	f := newFixture(t, `<?php
function h($x) {
    if ($x) {
        return $x;
    }
    return 'lit';
}
h($_GET['x']);
`)
	c := f.call(t, "h")
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(c), "h")
	require.NoError(t, err)
	assert.Equal(t, []int{6}, fa.ReturnLines())
	assert.Equal(t, Unassigned, fa.AnalyseFunctionCall(c.Args).Taint)
}

func TestUndeclaredVariableIsUnknown(t *testing.T) {
	f := newFixture(t, `<?php
function f() { return $missing; }
f();
`)
	c := f.call(t, "f")
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(c), "f")
	require.NoError(t, err)
	assert.Equal(t, Unknown, fa.AnalyseFunctionCall(c.Args).Taint)
	assert.Equal(t, []string{"$missing"}, fa.Unresolved())
}

func TestFunctionScopeHidesScriptVariables(t *testing.T) {
	f := newFixture(t, `<?php
$a = $_GET['a'];
function f() { return $a; }
f();
`)
	assert.Equal(t, Unknown, f.callSite(t, "f").Taint, "script variables are not visible without a global declaration")
}

func TestGlobalDeclarationSeesScriptVariable(t *testing.T) {
	f := newFixture(t, `<?php
$a = $_GET['a'];
function f() {
    global $a;
    return $a;
}
f();
`)
	assert.Equal(t, Tainted, f.callSite(t, "f").Taint, "global aliases the script binding visible at the declaration")
}

func TestRecursiveFunctionDegradesToUnknown(t *testing.T) {
	f := newFixture(t, `<?php
function f($n) { return f($n); }
f(1);
`)
	assert.Equal(t, Unknown, f.callSite(t, "f").Taint)
}

func TestMutualRecursionTerminates(t *testing.T) {
	f := newFixture(t, `<?php
function even($n) { return odd($n); }
function odd($n) { return even($n); }
even($_GET['n']);
`)
	res := f.callSite(t, "even")
	assert.Equal(t, Tainted, res.Taint)
}

func TestCallDepthLimit(t *testing.T) {
	src := `<?php
function a() { return b(); }
function b() { return c(); }
function c() { return $_GET['x']; }
a();
`
	// Building a builds b, which builds c unless the limit is reached.
	unlimited := newFixture(t, src)
	unlimited.callSite(t, "a")
	assert.Equal(t, Unassigned, unlimited.callSite(t, "b").Taint)

	limited := newFixture(t, src, WithMaxCallDepth(2))
	limited.callSite(t, "a")
	res := limited.callSite(t, "b")
	assert.Equal(t, Unknown, res.Taint, "the callee beyond the limit is summarized conservatively")

	b, err := limited.engine.GetFunctionAnalyser(limited.engine.Annotations().Global(), "b")
	require.NoError(t, err)
	deps, ok := b.Returns(3)
	require.True(t, ok)
	assert.Contains(t, deps, "c()")
}

func TestAnalyserIsMemoized(t *testing.T) {
	f := newFixture(t, `<?php
function f($x) { return $x; }
f(1);
`)
	env := f.engine.Annotations().EnvironmentOf(f.call(t, "f"))
	first, err := f.engine.GetFunctionAnalyser(env, "f")
	require.NoError(t, err)
	second, err := f.engine.GetFunctionAnalyser(env, "F")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestUnknownFunctionIsUnbound(t *testing.T) {
	f := newFixture(t, `<?php
echo 1;
`)
	_, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().Global(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, environment.ErrUnboundIdentifier))
}

func TestVariadicParameterAbsorbsRemainingArguments(t *testing.T) {
	f := newFixture(t, `<?php
function f($first, ...$rest) { return $rest; }
f('a', 'b', $_GET['x']);
`)
	assert.Equal(t, Tainted, f.callSite(t, "f").Taint)

	g := newFixture(t, `<?php
function f($first, ...$rest) { return $rest; }
f($_GET['x']);
`)
	assert.Equal(t, Unassigned, g.callSite(t, "f").Taint, "only arguments after the fixed parameters reach the variadic one")
}

func TestUnpackedArgumentFeedsRemainingParameters(t *testing.T) {
	f := newFixture(t, `<?php
function f($a, $b) { return $b; }
f(...$_GET);
`)
	assert.Equal(t, Tainted, f.callSite(t, "f").Taint)
}

func TestNamedArgumentsAndDefaults(t *testing.T) {
	f := newFixture(t, `<?php
function f($a, $b = 'safe') { return $b; }
f(b: $_GET['x'], a: 1);
`)
	assert.Equal(t, Tainted, f.callSite(t, "f").Taint)

	g := newFixture(t, `<?php
function f($a, $b = 'safe') { return $b; }
f($_GET['x']);
`)
	assert.Equal(t, Unassigned, g.callSite(t, "f").Taint)
}

func TestNamespacedFunction(t *testing.T) {
	f := newFixture(t, `<?php
namespace App\Util;
function clean($x) { return htmlspecialchars($x); }
echo clean($_GET['x']);
`)
	res := f.callSite(t, "clean")
	assert.Equal(t, Tainted, res.Taint)
	assert.Equal(t, []string{"htmlspecialchars"}, res.Sanitizers.Names())
}

func TestScriptLevelEvaluation(t *testing.T) {
	f := newFixture(t, `<?php
$a = $_GET['q'];
$b = htmlspecialchars($a);
echo $b;
`)
	deps := f.engine.Trace(f.echoed(t))
	require.Equal(t, []string{"$_GET"}, deps.Names())
	assert.Equal(t, Tainted, deps["$_GET"].Taint)
	assert.Equal(t, []string{"htmlspecialchars"}, deps["$_GET"].Sanitizers.Names())
}

func TestSelfAssignmentReadsItsOwnRecord(t *testing.T) {
	f := newFixture(t, `<?php
$a = $_GET['q'];
$a = htmlspecialchars($a);
echo $a;
`)
	// The right-hand $a shares the record of the name, whose definition is
	// the assignment being traced.
	res := f.engine.Evaluate(f.echoed(t))
	assert.Equal(t, Unknown, res.Taint)
	assert.Equal(t, []string{"htmlspecialchars"}, res.Sanitizers.Names())
}

func TestReassignedNameSharesOneRecord(t *testing.T) {
	script := newFixture(t, `<?php
$a = $_GET['q'];
$a = 'fixed';
echo $a;
`)
	assert.Equal(t, Unassigned, script.engine.Evaluate(script.echoed(t)).Taint)

	// $a is first materialized by the return, bound to the literal, and
	// $b's read of $a reuses that record.
	fn := newFixture(t, `<?php
function f() {
    $a = $_GET['x'];
    $b = $a;
    $a = 'lit';
    return $a . $b;
}
f();
`)
	assert.Equal(t, Unassigned, fn.callSite(t, "f").Taint)
}

func TestParameterNameIsOpaque(t *testing.T) {
	f := newFixture(t, `<?php
function f($x) {
    $x = htmlspecialchars($x);
    return $x;
}
f($_GET['q']);
`)
	res := f.callSite(t, "f")
	assert.Equal(t, Tainted, res.Taint)
	assert.Empty(t, res.Sanitizers, "a name matching a parameter is the parameter itself")
}

func TestTracerStopsAtDeclaredCalls(t *testing.T) {
	f := newFixture(t, `<?php
function g($x) { return 'lit'; }
$y = g($_GET['q']);
echo $y;
`)
	deps := f.engine.Trace(f.echoed(t))
	require.Equal(t, []string{"$_GET"}, deps.Names())
	assert.Equal(t, Tainted, deps["$_GET"].Taint)
	assert.Len(t, f.engine.analysers, 1, "tracing the call built the analyser")

	c := f.call(t, "g")
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(c), "g")
	require.NoError(t, err)
	assert.Equal(t, Unassigned, fa.AnalyseFunctionCall(c.Args).Taint)
}

func TestCallDependencies(t *testing.T) {
	f := newFixture(t, `<?php
function esc($s) { return htmlspecialchars($s); }
function banner($s) { return 'hello'; }
echo esc($_POST['x']);
echo banner($_GET['x']);
`)
	esc := f.call(t, "esc")
	fa, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(esc), "esc")
	require.NoError(t, err)
	deps := fa.CallDependencies(esc.Args, f.engine.Trace)
	require.Equal(t, []string{"$_POST"}, deps.Names())
	assert.Equal(t, Tainted, deps["$_POST"].Taint)
	assert.Equal(t, []string{"htmlspecialchars"}, deps["$_POST"].Sanitizers.Names())
	assert.Equal(t, fa.AnalyseFunctionCall(esc.Args).Taint, deps.Summarize().Taint)

	banner := f.call(t, "banner")
	fb, err := f.engine.GetFunctionAnalyser(f.engine.Annotations().EnvironmentOf(banner), "banner")
	require.NoError(t, err)
	assert.Empty(t, fb.CallDependencies(banner.Args, f.engine.Trace), "an ignored argument does not flow")
}

func TestInputFunction(t *testing.T) {
	f := newFixture(t, `<?php
$home = getenv('HOME');
echo $home;
`)
	deps := f.engine.Trace(f.echoed(t))
	require.Contains(t, deps, "getenv()")
	assert.Equal(t, Tainted, deps["getenv()"].Taint)
}

func TestContainerWritesKeepTaint(t *testing.T) {
	f := newFixture(t, `<?php
$a = [];
$a['k'] = $_GET['x'];
$a['j'] = 'safe';
echo $a;
`)
	assert.Equal(t, Tainted, f.engine.Evaluate(f.echoed(t)).Taint)
}

func TestCompoundAssignment(t *testing.T) {
	f := newFixture(t, `<?php
$s = 'prefix';
$s .= $_COOKIE['c'];
echo $s;
`)
	assert.Equal(t, Tainted, f.engine.Evaluate(f.echoed(t)).Taint)
}

func TestNumericCastNeutralizes(t *testing.T) {
	f := newFixture(t, `<?php
echo (int) $_GET['id'];
`)
	assert.Empty(t, f.engine.Trace(f.echoed(t)))

	g := newFixture(t, `<?php
echo (string) $_GET['id'];
`)
	assert.Equal(t, Tainted, g.engine.Evaluate(g.echoed(t)).Taint)
}

func TestBranchesOverApproximate(t *testing.T) {
	f := newFixture(t, `<?php
if ($x) {
    $a = $_GET['q'];
}
echo $a;
`)
	assert.Equal(t, Tainted, f.engine.Evaluate(f.echoed(t)).Taint)
}

func TestDynamicNamesAreUnknown(t *testing.T) {
	f := newFixture(t, `<?php
echo $$name;
`)
	assert.Equal(t, Unknown, f.engine.Evaluate(f.echoed(t)).Taint)

	g := newFixture(t, `<?php
$fn = 'system';
echo $fn('x');
`)
	deps := g.engine.Trace(g.echoed(t))
	assert.Contains(t, deps, dynamicCallKey)
	assert.Equal(t, Unknown, deps.Summarize().Taint)
}

func TestMethodCallsAreRecordedGaps(t *testing.T) {
	f := newFixture(t, `<?php
echo $obj->render($_GET['x']);
`)
	assert.Empty(t, f.engine.Trace(f.echoed(t)))
	gaps := f.engine.Gaps()
	require.Len(t, gaps, 1)
	assert.Equal(t, "method call", gaps[0].Construct)
	assert.Equal(t, 2, gaps[0].Line)
}

func TestGapsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	file, err := parser.New(logger).ParseString("gap.php", `<?php
echo User::$name;
`)
	require.NoError(t, err)
	annotations, err := environment.Resolve(logger, file)
	require.NoError(t, err)
	e := NewEngine(logger, annotations, stubRegistry{})

	var echoed ast.Expr
	ast.Inspect(file, func(n ast.Node) bool {
		if ec, ok := n.(*ast.Echo); ok {
			echoed = ec.Exprs[0]
		}
		return true
	})
	require.NotNil(t, echoed)
	assert.Empty(t, e.Trace(echoed))

	entries := logs.FilterMessage("Unsupported construct recorded as analysis gap").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "static property fetch", entries[0].ContextMap()["construct"])
}

func TestSelfReferentialAssignment(t *testing.T) {
	f := newFixture(t, `<?php
foreach ($items as $item) {
    $acc = $acc . $item;
}
echo $acc;
`)
	res := f.engine.Evaluate(f.echoed(t))
	assert.Equal(t, Unknown, res.Taint, "unresolved $items and the first read of $acc degrade to unknown")
}

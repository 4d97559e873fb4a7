package taint

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/environment"
	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// Synthetic dependency names for values that have no variable of their own.
const (
	dynamicVariableKey = "${dynamic}"
	dynamicCallKey     = "{dynamic}()"
)

// numericCasts neutralize any taint of their operand.
var numericCasts = map[string]bool{
	"int":     true,
	"integer": true,
	"float":   true,
	"double":  true,
	"real":    true,
	"bool":    true,
	"boolean": true,
	"unset":   true,
}

// tracer computes the variable dependencies of expressions on behalf of
// one function analyser, or of the script level when function is empty.
type tracer struct {
	engine   *Engine
	function string
	params   map[string]*ast.Param

	// variables caches the record of every name materialized by this
	// tracer. The first reference to a name fixes its definition, so later
	// reassignments of the same name are not told apart.
	variables  map[string]*VariableInfo
	inProgress map[ast.Node]bool
	unresolved []string
}

func newTracer(e *Engine, function string, params []*ast.Param) *tracer {
	t := &tracer{
		engine:     e,
		function:   function,
		params:     make(map[string]*ast.Param, len(params)),
		variables:  make(map[string]*VariableInfo),
		inProgress: make(map[ast.Node]bool),
	}
	for _, p := range params {
		t.params[p.Name] = p
	}
	return t
}

func leaf(info *VariableInfo) Dependencies {
	return Dependencies{info.Name: info.Copy()}
}

func (t *tracer) trace(expr ast.Expr) Dependencies {
	switch e := expr.(type) {
	case nil:
		return Dependencies{}

	case *ast.Literal, *ast.ConstFetch, *ast.ClassConstFetch, *ast.Closure:
		return Dependencies{}

	case *ast.Variable:
		return t.traceVariable(e)

	case *ast.Interpolated:
		return t.traceAll(e.Parts...)

	case *ast.Assign:
		return t.trace(e.Expr)

	case *ast.AssignOp:
		return Merge(t.trace(e.Var), t.trace(e.Expr))

	case *ast.IncDec:
		return t.trace(e.Var)

	case *ast.Unary:
		return t.trace(e.Expr)

	case *ast.Binary:
		return Merge(t.trace(e.Left), t.trace(e.Right))

	case *ast.Cast:
		if numericCasts[e.Type] {
			return Dependencies{}
		}
		return t.trace(e.Expr)

	case *ast.Array:
		return t.traceItems(e.Items)

	case *ast.List:
		return t.traceItems(e.Items)

	case *ast.ArrayDimFetch:
		return t.trace(e.Var)

	case *ast.PropertyFetch:
		return t.trace(e.Var)

	case *ast.Ternary:
		if e.If == nil {
			return Merge(t.trace(e.Cond), t.trace(e.Else))
		}
		return Merge(t.trace(e.If), t.trace(e.Else))

	case *ast.Eval:
		return t.trace(e.Expr)

	case *ast.FuncCall:
		return t.traceCall(e)

	case *ast.StaticPropertyFetch:
		t.engine.recordGap("static property fetch", e, t.function)
		return Dependencies{}

	case *ast.MethodCall:
		t.engine.recordGap("method call", e, t.function)
		return Dependencies{}

	case *ast.StaticCall:
		t.engine.recordGap("static call", e, t.function)
		return Dependencies{}
	}

	t.engine.recordGap(expr.Kind().String(), expr, t.function)
	return Dependencies{}
}

func (t *tracer) traceAll(exprs ...ast.Expr) Dependencies {
	maps := make([]Dependencies, 0, len(exprs))
	for _, e := range exprs {
		maps = append(maps, t.trace(e))
	}
	return Merge(maps...)
}

func (t *tracer) traceItems(items []*ast.ArrayItem) Dependencies {
	maps := make([]Dependencies, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if item.Key != nil {
			maps = append(maps, t.trace(item.Key))
		}
		maps = append(maps, t.trace(item.Value))
	}
	return Merge(maps...)
}

// traceCall traces the arguments of a call and applies sanitizer
// bookkeeping for the callee. Calls to input functions add a tainted
// synthetic dependency. A declared callee gets its analyser built on first
// use, but its return value is left to the call-site query; only a callee
// whose summary cannot be built adds an unknown synthetic dependency.
func (t *tracer) traceCall(call *ast.FuncCall) Dependencies {
	if call.Name == "" {
		t.engine.recordGap("dynamic function call", call, t.function)
		deps := t.traceArgs(call.Args, "")
		deps[dynamicCallKey] = &VariableInfo{Name: dynamicCallKey, Taint: Unknown, Sanitizers: SanitizerSet{}}
		return deps
	}

	name := baseName(call.Name)
	reg := t.engine.registry
	switch {
	case reg.IsInputFunction(name):
		deps := t.traceArgs(call.Args, name)
		key := name + "()"
		deps[key] = &VariableInfo{Name: key, Taint: Tainted, Sanitizers: SanitizerSet{}}
		return deps
	case reg.IsSanitisingFunction(name), reg.IsSanitisingReverseFunction(name):
		return t.traceArgs(call.Args, name)
	}

	env := t.engine.annotations.EnvironmentOf(call)
	_, err := t.engine.GetFunctionAnalyser(env, call.Name)
	if errors.Is(err, ErrRecursiveAnalysis) || errors.Is(err, ErrCallDepthExceeded) {
		t.engine.logger.Debug("Summarizing call conservatively",
			zap.String("callee", call.Name),
			zap.String("caller", t.function),
			zap.Error(err),
		)
		deps := t.traceArgs(call.Args, name)
		key := call.Name + "()"
		deps[key] = &VariableInfo{Name: key, Taint: Unknown, Sanitizers: SanitizerSet{}}
		return deps
	}
	return t.traceArgs(call.Args, name)
}

func (t *tracer) traceArgs(args []*ast.Arg, callee string) Dependencies {
	reg := t.engine.registry
	maps := make([]Dependencies, 0, len(args))
	for _, a := range args {
		d := t.trace(a.Value)
		switch {
		case callee == "":
		case reg.IsSanitisingFunction(callee):
			d = d.WithSanitizer(callee)
		case reg.IsSanitisingReverseFunction(callee):
			d = d.WithoutSanitizer(reg.AffectedSanitiser(callee))
		}
		maps = append(maps, d)
	}
	return Merge(maps...)
}

// traceVariable returns the dependencies of a variable reference: the
// variable itself when it is a source, a parameter or unresolvable, and
// the dependencies of its definition otherwise.
func (t *tracer) traceVariable(v *ast.Variable) Dependencies {
	if v.Name == "" {
		t.engine.recordGap("dynamic variable", v, t.function)
		return Dependencies{dynamicVariableKey: {Name: dynamicVariableKey, Taint: Unknown, Sanitizers: SanitizerSet{}}}
	}

	info := t.details(v)
	if t.engine.registry.IsInputVariable(v) {
		info.Taint = Tainted
		return leaf(info)
	}
	return t.traceInfo(info)
}

// details returns the cached record for v's name, materializing it on the
// first reference: a declared parameter of the analysed function is opaque,
// any other name is resolved in the environment annotated on v.
func (t *tracer) details(v *ast.Variable) *VariableInfo {
	if info, ok := t.variables[v.Name]; ok {
		return info
	}
	var info *VariableInfo
	if p, ok := t.params[v.Name]; ok {
		info = &VariableInfo{Name: v.Name, Sanitizers: SanitizerSet{}, Param: p}
	} else if b, err := t.engine.annotations.EnvironmentOf(v).ResolveVariable(v.Name); err != nil {
		info = t.unbound(v, err)
	} else {
		info = t.bound(v, b)
	}
	t.variables[v.Name] = info
	return info
}

func (t *tracer) unbound(v *ast.Variable, err error) *VariableInfo {
	t.unresolved = append(t.unresolved, v.Name)
	t.engine.logger.Debug("Variable could not be resolved",
		zap.String("variable", v.Name),
		zap.Int("line", v.Line()),
		zap.String("function", t.function),
		zap.Error(err),
	)
	return &VariableInfo{Name: v.Name, Taint: Unknown, Sanitizers: SanitizerSet{}, Unresolved: true}
}

func (t *tracer) bound(v *ast.Variable, b *environment.Binding) *VariableInfo {
	info := &VariableInfo{Name: v.Name, Sanitizers: SanitizerSet{}}
	switch b.Kind {
	case environment.BindValue:
		info.Definition = b.Node
	default:
		info.Taint = Unknown
	}
	return info
}

func (t *tracer) traceInfo(info *VariableInfo) Dependencies {
	if info.Definition == nil {
		return leaf(info)
	}
	def := info.Definition
	if t.inProgress[def] {
		cyclic := info.Copy()
		cyclic.Taint = cyclic.Taint.Join(Unknown)
		return leaf(cyclic)
	}
	t.inProgress[def] = true
	defer delete(t.inProgress, def)
	return t.traceDefinition(def)
}

// traceDefinition returns the dependencies of the value a definition node
// binds.
func (t *tracer) traceDefinition(def ast.Node) Dependencies {
	switch d := def.(type) {
	case *ast.Assign:
		deps := t.trace(d.Expr)
		if _, plain := d.Var.(*ast.Variable); !plain {
			if base := environment.ContainerVariable(d.Var); base != nil {
				deps = Merge(deps, t.tracePrevious(base))
			}
		}
		return deps
	case *ast.AssignOp:
		deps := t.trace(d.Expr)
		if base := environment.ContainerVariable(d.Var); base != nil {
			deps = Merge(deps, t.tracePrevious(base))
		}
		return deps
	case *ast.Foreach:
		return t.trace(d.Expr)
	case *ast.StaticVarItem:
		return t.trace(d.Default)
	case *ast.PropertyItem:
		return t.trace(d.Default)
	case *ast.Catch, *ast.Class:
		return Dependencies{}
	}
	return Dependencies{}
}

// tracePrevious traces the binding a container variable had before the
// write at v. The name cache would return the write itself, so the earlier
// binding is resolved directly. A container that did not exist yet
// contributes nothing.
func (t *tracer) tracePrevious(v *ast.Variable) Dependencies {
	if v.Name == "" || t.engine.registry.IsInputVariable(v) {
		return t.traceVariable(v)
	}
	if p, ok := t.params[v.Name]; ok {
		return Dependencies{v.Name: {Name: v.Name, Sanitizers: SanitizerSet{}, Param: p}}
	}
	b, err := t.engine.annotations.EnvironmentOf(v).ResolveVariable(v.Name)
	if err != nil {
		return Dependencies{}
	}
	return t.traceInfo(t.bound(v, b))
}

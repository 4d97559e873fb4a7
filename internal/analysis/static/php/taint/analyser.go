package taint

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// FunctionAnalyser holds the summary of one function declaration: the
// dependencies of every return statement, keyed by source line.
type FunctionAnalyser struct {
	engine  *Engine
	Decl    *ast.Function
	returns map[int]Dependencies
	tracer  *tracer
}

func newFunctionAnalyser(e *Engine, decl *ast.Function) *FunctionAnalyser {
	fa := &FunctionAnalyser{
		engine:  e,
		Decl:    decl,
		returns: make(map[int]Dependencies),
		tracer:  newTracer(e, decl.Name, decl.Params),
	}
	// Two returns on one line share an entry; the later one wins.
	for _, ret := range collectReturns(decl.Stmts) {
		fa.returns[ret.Line()] = fa.tracer.trace(ret.Expr)
	}
	return fa
}

// collectReturns returns the return statements that are direct statements
// of a function body. Returns nested in conditionals, loops or blocks are
// not part of the summary.
func collectReturns(stmts []ast.Stmt) []*ast.Return {
	var out []*ast.Return
	for _, s := range stmts {
		if ret, ok := s.(*ast.Return); ok {
			out = append(out, ret)
		}
	}
	return out
}

// Params returns the declared parameters.
func (f *FunctionAnalyser) Params() []*ast.Param { return f.Decl.Params }

// ReturnLines lists the lines of the summarized return statements.
func (f *FunctionAnalyser) ReturnLines() []int {
	out := make([]int, 0, len(f.returns))
	for line := range f.returns {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// Returns returns the dependencies of the return statement on line.
func (f *FunctionAnalyser) Returns(line int) (Dependencies, bool) {
	deps, ok := f.returns[line]
	return deps, ok
}

// Unresolved lists variable names that could not be resolved while
// building the summary.
func (f *FunctionAnalyser) Unresolved() []string {
	out := make([]string, len(f.tracer.unresolved))
	copy(out, f.tracer.unresolved)
	return out
}

// AnalyseFunctionCall computes the taint of a call to this function with
// the given arguments. Arguments are evaluated in the environment they
// were annotated with, i.e. the caller's.
func (f *FunctionAnalyser) AnalyseFunctionCall(args []*ast.Arg) Result {
	bound, _ := f.bindArguments(args, f.engine.Trace)
	res := Result{Taint: Unassigned, Sanitizers: SanitizerSet{}}
	for _, deps := range f.returns {
		for _, dep := range deps {
			taint, sanitizers := dep.Taint, dep.Sanitizers
			if dep.Param != nil {
				if arg, ok := bound[dep.Param.Name]; ok {
					r := arg.Summarize()
					taint = taint.Join(r.Taint)
					sanitizers = sanitizers.Union(r.Sanitizers)
				}
			}
			res.Taint = res.Taint.Join(taint)
			res.Sanitizers = res.Sanitizers.Union(sanitizers)
		}
	}
	return res
}

// Trace returns the dependencies of an expression inside the function
// body. Parameters show up as parameter dependencies.
func (f *FunctionAnalyser) Trace(expr ast.Expr) Dependencies {
	return f.tracer.trace(expr)
}

// ArgumentDependencies binds args to the declared parameters, tracing each
// argument with trace, and returns the dependencies per parameter name.
func (f *FunctionAnalyser) ArgumentDependencies(args []*ast.Arg, trace func(ast.Expr) Dependencies) map[string]Dependencies {
	bound, _ := f.bindArguments(args, trace)
	return bound
}

// CallDependencies is the call-site query in dependency form: the summary
// rewritten in terms of the caller, each parameter dependency replaced by
// the dependencies of the argument bound to it and carrying the sanitizers
// applied inside the function. Arguments beyond the declared parameters
// pass through unchanged. Summarizing the result yields the same taint as
// AnalyseFunctionCall when arguments are traced with Engine.Trace.
func (f *FunctionAnalyser) CallDependencies(args []*ast.Arg, trace func(ast.Expr) Dependencies) Dependencies {
	bound, extra := f.bindArguments(args, trace)
	maps := []Dependencies{extra}
	for _, line := range f.ReturnLines() {
		for name, dep := range f.returns[line] {
			if dep.Param == nil {
				maps = append(maps, Dependencies{name: dep})
				continue
			}
			arg := bound[dep.Param.Name]
			if len(arg) == 0 {
				if dep.Taint != Unassigned {
					key := f.Decl.Name + "()"
					maps = append(maps, Dependencies{key: {Name: key, Taint: dep.Taint, Sanitizers: dep.Sanitizers}})
				}
				continue
			}
			maps = append(maps, arg.Through(dep))
		}
	}
	return Merge(maps...)
}

// bindArguments maps each parameter name to the dependencies of the
// argument bound to it. A variadic parameter absorbs every remaining
// argument and an unpacked argument feeds every remaining parameter.
// Positional arguments no parameter accepts are returned as extra.
func (f *FunctionAnalyser) bindArguments(args []*ast.Arg, trace func(ast.Expr) Dependencies) (map[string]Dependencies, Dependencies) {
	params := f.Decl.Params
	bound := make(map[string]Dependencies, len(params))

	var positional []*ast.Arg
	named := make(map[string]*ast.Arg)
	for _, a := range args {
		if a.Name != "" {
			named[a.Name] = a
			continue
		}
		positional = append(positional, a)
	}

	var spread Dependencies
	variadic := false
	for i, p := range params {
		switch {
		case spread != nil:
			bound[p.Name] = spread
		case p.Variadic:
			variadic = true
			rest := make([]Dependencies, 0, len(positional))
			for _, a := range positional[min(i, len(positional)):] {
				rest = append(rest, trace(a.Value))
			}
			bound[p.Name] = Merge(rest...)
		case i < len(positional):
			d := trace(positional[i].Value)
			if positional[i].Unpack {
				spread = d
			}
			bound[p.Name] = d
		default:
			if a, ok := named[strings.TrimPrefix(p.Name, "$")]; ok {
				bound[p.Name] = trace(a.Value)
			} else if p.Default != nil {
				bound[p.Name] = trace(p.Default)
			}
		}
	}

	extra := Dependencies{}
	if !variadic && len(positional) > len(params) {
		rest := make([]Dependencies, 0, len(positional)-len(params))
		for _, a := range positional[len(params):] {
			rest = append(rest, trace(a.Value))
		}
		extra = Merge(rest...)
	}
	return bound, extra
}

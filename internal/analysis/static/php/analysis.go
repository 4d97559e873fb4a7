// Filename: php/analysis.go
package php

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/taint"
	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// scope is the function context a node is traced in. Methods, closures and
// script code use the script-level tracer, where foreign parameters are
// unknown.
type scope struct {
	fn *ast.Function
	fa *taint.FunctionAnalyser
}

func (s *scope) trace(e *taint.Engine, expr ast.Expr) taint.Dependencies {
	if s.fa != nil {
		return s.fa.Trace(expr)
	}
	return e.Trace(expr)
}

func (s *scope) name() string {
	if s.fn == nil {
		return ""
	}
	return s.fn.Name
}

type sinkSite struct {
	sink  sources.SinkDefinition
	node  ast.Node
	args  []ast.Expr
	scope *scope
}

type callSite struct {
	call  *ast.FuncCall
	scope *scope
}

// paramSink records that a parameter of a function reaches a sink
// argument. via is the parameter's dependency record at the sink and
// carries the sanitizers applied inside the function.
type paramSink struct {
	site  *sinkSite
	arg   int
	param *ast.Param
	via   *taint.VariableInfo
	chain []LocationInfo
}

// analysis holds the per-file state of one Fingerprinter run. It
// implements ast.Visitor to collect sink and call sites.
type analysis struct {
	fp       *Fingerprinter
	filename string
	lines    [][]byte
	engine   *taint.Engine

	stack []*scope
	sites []*sinkSite
	calls []*callSite

	paramSinks map[*ast.Function][]*paramSink
	seenParams map[string]bool
	visited    map[string]bool
	callees    map[*ast.FuncCall]*taint.FunctionAnalyser

	findings []StaticFinding
	reported map[string]int
}

func newAnalysis(fp *Fingerprinter, filename string, content []byte, engine *taint.Engine) *analysis {
	return &analysis{
		fp:         fp,
		filename:   filename,
		lines:      bytes.Split(content, []byte("\n")),
		engine:     engine,
		stack:      []*scope{{}},
		paramSinks: make(map[*ast.Function][]*paramSink),
		seenParams: make(map[string]bool),
		visited:    make(map[string]bool),
		callees:    make(map[*ast.FuncCall]*taint.FunctionAnalyser),
		reported:   make(map[string]int),
	}
}

func (a *analysis) top() *scope { return a.stack[len(a.stack)-1] }

// Enter implements ast.Visitor.
func (a *analysis) Enter(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Function:
		s := &scope{fn: n}
		fa, err := a.engine.Analyser(n)
		if err != nil {
			a.fp.logger.Debug("Function summary unavailable; sinks traced at script level",
				zap.String("function", n.Name),
				zap.Error(err),
			)
		} else {
			s.fa = fa
		}
		a.stack = append(a.stack, s)

	case *ast.Method, *ast.Closure:
		a.stack = append(a.stack, &scope{})

	case *ast.Echo:
		if sink, ok := a.fp.registry.Sink("echo"); ok {
			a.addSite(sink, n, n.Exprs)
		}

	case *ast.Eval:
		if sink, ok := a.fp.registry.Sink("eval"); ok {
			a.addSite(sink, n, []ast.Expr{n.Expr})
		}

	case *ast.FuncCall:
		if n.Name == "" {
			break
		}
		a.calls = append(a.calls, &callSite{call: n, scope: a.top()})
		if sink, ok := a.fp.registry.Sink(n.Name); ok {
			args := make([]ast.Expr, len(n.Args))
			for i, arg := range n.Args {
				args[i] = arg.Value
			}
			a.addSite(sink, n, args)
		}
	}
	return true
}

// Leave implements ast.Visitor.
func (a *analysis) Leave(n ast.Node) {
	switch n.(type) {
	case *ast.Function, *ast.Method, *ast.Closure:
		a.stack = a.stack[:len(a.stack)-1]
	}
}

func (a *analysis) addSite(sink sources.SinkDefinition, n ast.Node, args []ast.Expr) {
	a.sites = append(a.sites, &sinkSite{sink: sink, node: n, args: args, scope: a.top()})
}

func (a *analysis) location(line int) LocationInfo {
	return LocationInfo{File: a.filename, Line: line, Snippet: snippet(a.lines, line)}
}

// checkSites traces every sensitive argument of every sink site in the
// context it appears in.
func (a *analysis) checkSites() {
	for _, site := range a.sites {
		for i, arg := range site.args {
			if arg == nil || !site.sink.Sensitive(i) {
				continue
			}
			deps := a.resolve(site.scope, arg)
			a.evaluate(site, i, deps, site.scope.fn, nil)
		}
	}
}

// resolve returns the dependencies of a value reaching a sink. The tracer
// stops at call boundaries, so a direct call to a declared function is
// answered with the callee's call-site query, arguments resolved the same
// way in the caller's scope.
func (a *analysis) resolve(s *scope, expr ast.Expr) taint.Dependencies {
	if call, ok := expr.(*ast.FuncCall); ok {
		if fa := a.declared(call); fa != nil {
			return fa.CallDependencies(call.Args, func(e ast.Expr) taint.Dependencies {
				return a.resolve(s, e)
			})
		}
	}
	return s.trace(a.engine, expr)
}

// propagate pushes parameter sinks out to the call sites of their
// functions until no new parameter sink appears.
func (a *analysis) propagate() {
	for changed := true; changed; {
		changed = false
		for ci, c := range a.calls {
			callee := a.declared(c.call)
			if callee == nil {
				continue
			}
			for _, ps := range a.paramSinks[callee.Decl] {
				key := fmt.Sprintf("%d/%p", ci, ps)
				if a.visited[key] {
					continue
				}
				a.visited[key] = true

				bound := callee.ArgumentDependencies(c.call.Args, func(e ast.Expr) taint.Dependencies {
					return a.resolve(c.scope, e)
				})
				arg, ok := bound[ps.param.Name]
				if !ok {
					continue
				}
				chain := append(append([]LocationInfo(nil), ps.chain...), a.location(c.call.Line()))
				if a.evaluate(ps.site, ps.arg, arg.Through(ps.via), c.scope.fn, chain) {
					changed = true
				}
			}
		}
	}
}

// declared returns the analyser of the declared function call invokes, or
// nil for dynamic calls, registry functions and undeclared names.
func (a *analysis) declared(call *ast.FuncCall) *taint.FunctionAnalyser {
	if fa, ok := a.callees[call]; ok {
		return fa
	}
	var fa *taint.FunctionAnalyser
	reg := a.fp.registry
	if call.Name != "" && !reg.IsInputFunction(call.Name) &&
		!reg.IsSanitisingFunction(call.Name) && !reg.IsSanitisingReverseFunction(call.Name) {
		env := a.engine.Annotations().EnvironmentOf(call)
		if found, err := a.engine.GetFunctionAnalyser(env, call.Name); err == nil {
			fa = found
		}
	}
	a.callees[call] = fa
	return fa
}

// evaluate checks the dependencies of one sink argument. Unprotected
// parameters of owner become parameter sinks; the return value reports
// whether any new one was recorded.
func (a *analysis) evaluate(site *sinkSite, arg int, deps taint.Dependencies, owner *ast.Function, chain []LocationInfo) bool {
	class := site.sink.Class
	var tainted, unknown []string
	sanitizers := taint.SanitizerSet{}
	added := false

	for _, name := range deps.Names() {
		dep := deps[name]
		if a.covered(dep.Sanitizers, class) {
			continue
		}
		switch {
		case dep.IsParameter() && owner != nil:
			if a.addParamSink(owner, &paramSink{site: site, arg: arg, param: dep.Param, via: dep, chain: chain}) {
				added = true
			}
		case dep.Taint == taint.Tainted:
			tainted = append(tainted, name)
			sanitizers = sanitizers.Union(dep.Sanitizers)
		case dep.Taint == taint.Unknown:
			unknown = append(unknown, name)
		}
	}

	switch {
	case len(tainted) > 0:
		a.report(site, arg, taint.Tainted, tainted, sanitizers, chain)
	case len(unknown) > 0 && a.fp.opts.ReportUnknown:
		a.report(site, arg, taint.Unknown, unknown, taint.SanitizerSet{}, chain)
	}
	return added
}

func (a *analysis) addParamSink(owner *ast.Function, ps *paramSink) bool {
	key := fmt.Sprintf("%p/%p/%p/%d", owner, ps.param, ps.site, ps.arg)
	if a.seenParams[key] {
		return false
	}
	a.seenParams[key] = true
	a.paramSinks[owner] = append(a.paramSinks[owner], ps)
	return true
}

func (a *analysis) covered(sanitizers taint.SanitizerSet, class sources.VulnerabilityClass) bool {
	for name := range sanitizers {
		if a.fp.registry.Protects(name, class) {
			return true
		}
	}
	return false
}

// report records a finding for one sink argument. A tainted finding
// replaces an unknown one for the same argument; otherwise the first one
// wins.
func (a *analysis) report(site *sinkSite, arg int, level taint.Annotation, names []string, sanitizers taint.SanitizerSet, chain []LocationInfo) {
	key := fmt.Sprintf("%p/%d", site, arg)
	idx, seen := a.reported[key]
	if seen && (a.findings[idx].Taint >= level) {
		return
	}

	confidence := ConfidenceHigh
	if level != taint.Tainted {
		confidence = ConfidenceLow
	}
	finding := StaticFinding{
		Sink:       site.sink.Name,
		SinkType:   site.sink.Class,
		Argument:   arg,
		Sources:    names,
		Sanitizers: sanitizers.Names(),
		Taint:      level,
		Location:   a.location(site.node.Line()),
		Function:   site.scope.name(),
		Via:        chain,
		Confidence: confidence,
	}
	if seen {
		a.findings[idx] = finding
		return
	}
	a.reported[key] = len(a.findings)
	a.findings = append(a.findings, finding)
}

// results returns the findings ordered by line, sink and argument.
func (a *analysis) results() []StaticFinding {
	out := make([]StaticFinding, len(a.findings))
	copy(out, a.findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location.Line != out[j].Location.Line {
			return out[i].Location.Line < out[j].Location.Line
		}
		if out[i].Sink != out[j].Sink {
			return strings.Compare(out[i].Sink, out[j].Sink) < 0
		}
		return out[i].Argument < out[j].Argument
	})
	return out
}

package taint

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/environment"
	"github.com/xkilldash9x/phortress/internal/php/ast"
)

var (
	// ErrRecursiveAnalysis is returned when a function's summary is
	// requested while it is still being built.
	ErrRecursiveAnalysis = errors.New("recursive function analysis")
	// ErrCallDepthExceeded is returned when building a summary would nest
	// deeper than the configured limit.
	ErrCallDepthExceeded = errors.New("maximum call depth exceeded")
)

// DefaultMaxCallDepth bounds how many summaries may be under construction
// at once.
const DefaultMaxCallDepth = 32

// Gap records a construct the tracer could not model.
type Gap struct {
	Construct string
	Line      int
	Function  string
}

// Engine owns the taint state of one analysis unit: the annotated tree,
// the registry and the memoized function analysers. It is not safe for
// concurrent use.
type Engine struct {
	logger      *zap.Logger
	annotations *environment.Annotations
	registry    Registry
	maxDepth    int

	analysers    map[*ast.Function]*FunctionAnalyser
	constructing map[*ast.Function]bool
	depth        int
	gaps         []Gap
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxCallDepth limits nested summary construction. Values below one
// are ignored.
func WithMaxCallDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// NewEngine creates an engine over an annotated tree.
func NewEngine(logger *zap.Logger, annotations *environment.Annotations, registry Registry, opts ...Option) *Engine {
	e := &Engine{
		logger:       logger.Named("taint_engine"),
		annotations:  annotations,
		registry:     registry,
		maxDepth:     DefaultMaxCallDepth,
		analysers:    make(map[*ast.Function]*FunctionAnalyser),
		constructing: make(map[*ast.Function]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Annotations returns the side table the engine resolves names through.
func (e *Engine) Annotations() *environment.Annotations { return e.annotations }

// Registry returns the source and sanitizer registry in use.
func (e *Engine) Registry() Registry { return e.registry }

// GetFunctionAnalyser resolves name in env and returns the memoized
// analyser for the declaration it names, building it on first use.
func (e *Engine) GetFunctionAnalyser(env environment.Environment, name string) (*FunctionAnalyser, error) {
	decl, err := env.ResolveFunction(name)
	if err != nil {
		return nil, err
	}
	return e.analyserFor(decl)
}

// Analyser returns the memoized analyser for decl, building it on first
// use.
func (e *Engine) Analyser(decl *ast.Function) (*FunctionAnalyser, error) {
	return e.analyserFor(decl)
}

func (e *Engine) analyserFor(decl *ast.Function) (*FunctionAnalyser, error) {
	if fa, ok := e.analysers[decl]; ok {
		return fa, nil
	}
	if e.constructing[decl] {
		return nil, fmt.Errorf("%w: %s", ErrRecursiveAnalysis, decl.Name)
	}
	if e.depth >= e.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrCallDepthExceeded, decl.Name, e.depth)
	}

	e.constructing[decl] = true
	e.depth++
	defer func() {
		delete(e.constructing, decl)
		e.depth--
	}()

	fa := newFunctionAnalyser(e, decl)
	e.analysers[decl] = fa
	e.logger.Debug("Built function summary",
		zap.String("function", decl.Name),
		zap.Int("returns", len(fa.returns)),
		zap.Int("unresolved", len(fa.tracer.unresolved)),
	)
	return fa, nil
}

// Trace returns the dependencies of expr evaluated at script level, i.e.
// outside of any function summary. Each call uses a fresh tracer.
func (e *Engine) Trace(expr ast.Expr) Dependencies {
	return newTracer(e, "", nil).trace(expr)
}

// Evaluate resolves the taint of expr in the environment it was annotated
// with.
func (e *Engine) Evaluate(expr ast.Expr) Result {
	return e.Trace(expr).Summarize()
}

// Gaps returns every unsupported construct encountered so far.
func (e *Engine) Gaps() []Gap {
	out := make([]Gap, len(e.gaps))
	copy(out, e.gaps)
	return out
}

func (e *Engine) recordGap(construct string, n ast.Node, function string) {
	e.gaps = append(e.gaps, Gap{Construct: construct, Line: n.Line(), Function: function})
	e.logger.Debug("Unsupported construct recorded as analysis gap",
		zap.String("construct", construct),
		zap.Int("line", n.Line()),
		zap.String("function", function),
	)
}

// baseName strips any namespace qualification from a function name.
func baseName(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

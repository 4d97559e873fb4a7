package environment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// Resolver walks a tree once, maintaining a stack of environments, and
// records the environment visible at each node.
type Resolver struct {
	logger      *zap.Logger
	global      *GlobalEnvironment
	stack       []Environment
	annotations *Annotations
	err         error
	ignored     map[ast.Kind]int
}

// NewResolver creates a resolver whose stack starts at global.
func NewResolver(logger *zap.Logger, global *GlobalEnvironment) *Resolver {
	return &Resolver{
		logger:      logger.Named("env_resolver"),
		global:      global,
		stack:       []Environment{global},
		annotations: NewAnnotations(global),
		ignored:     make(map[ast.Kind]int),
	}
}

// Resolve annotates file in a fresh global environment.
func Resolve(logger *zap.Logger, file *ast.File) (*Annotations, error) {
	r := NewResolver(logger, NewGlobal())
	return r.Run(file)
}

// Run walks root and returns the annotations. A structural error aborts
// the walk and is returned; the partial annotations are still returned.
func (r *Resolver) Run(root ast.Node) (*Annotations, error) {
	ast.Walk(r, root)
	if r.err == nil && len(r.stack) != 1 {
		r.err = &StructuralError{Op: "resolve", Reason: fmt.Sprintf("unbalanced environment stack (depth %d)", len(r.stack))}
	}
	if len(r.ignored) > 0 {
		fields := make([]zap.Field, 0, len(r.ignored))
		for kind, count := range r.ignored {
			fields = append(fields, zap.Int(kind.String(), count))
		}
		r.logger.Debug("Ignored unmodelled nodes during resolution", fields...)
	}
	return r.annotations, r.err
}

// Top returns the environment currently on top of the stack.
func (r *Resolver) Top() Environment { return r.stack[len(r.stack)-1] }

func (r *Resolver) push(env Environment) { r.stack = append(r.stack, env) }

func (r *Resolver) replaceTop(env Environment) { r.stack[len(r.stack)-1] = env }

func (r *Resolver) pop() {
	if len(r.stack) <= 1 {
		r.fail(&StructuralError{Op: "leave scope", Reason: "cannot leave the global environment"})
		return
	}
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *Resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Resolver) stamp(n ast.Node) { r.annotations.Set(n, r.Top()) }

// globalScope is the outermost environment on the stack that still belongs
// to the global variable scope.
func (r *Resolver) globalScope() Environment {
	idx := 0
	for i, env := range r.stack {
		if isBoundary(env) {
			break
		}
		idx = i
	}
	return r.stack[idx]
}

// isBoundary reports whether env lies inside a function, method, closure or
// class scope.
func isBoundary(env Environment) bool {
	for e := env; e != nil; e = e.Parent() {
		if e.base().boundary {
			return true
		}
	}
	return false
}

// Enter implements ast.Visitor.
func (r *Resolver) Enter(n ast.Node) bool {
	if r.err != nil {
		return false
	}

	switch n := n.(type) {
	case *ast.Namespace:
		if n.Name == "" {
			r.push(r.Top())
		} else {
			r.push(r.global.CreateNamespace(`\` + n.Name))
		}
		r.stamp(n)
		return true

	case *ast.Function:
		env, err := r.Top().CreateFunction(n)
		if err != nil {
			r.fail(fmt.Errorf("declaring function %s: %w", n.Name, err))
			return false
		}
		r.push(env)
		r.stamp(n)
		return true

	case *ast.Class:
		class, err := r.Top().CreateClass(n)
		if err != nil {
			r.fail(fmt.Errorf("declaring class %s: %w", n.Name, err))
			return false
		}
		r.push(class)
		r.stamp(n)
		return true

	case *ast.Method:
		class, ok := r.Top().(*ClassEnvironment)
		if !ok {
			r.fail(&StructuralError{Op: "declare method " + n.Name, Reason: "not inside a class body"})
			return false
		}
		r.push(class.CreateMethod(n))
		r.stamp(n)
		return true

	case *ast.Closure:
		r.push(r.Top().CreateClosure(n))
		r.stamp(n)
		return true

	case *ast.PropertyDecl:
		class, ok := r.Top().(*ClassEnvironment)
		if !ok {
			r.fail(&StructuralError{Op: "declare property", Reason: "not inside a class body"})
			return false
		}
		for _, p := range n.Props {
			class.DefineProperty(p)
		}
		r.stamp(n)
		return true

	case *ast.Const:
		for _, item := range n.Consts {
			if err := r.Top().DefineConstant(item); err != nil {
				r.fail(fmt.Errorf("declaring constant %s: %w", item.Name, err))
				return false
			}
		}
		r.stamp(n)
		return true

	case *ast.Global:
		snapshot := r.globalScope()
		for _, v := range n.Vars {
			if v.Name == "" {
				ast.Walk(r, v)
				continue
			}
			target, err := snapshot.ResolveVariable(v.Name)
			if err != nil {
				target = &Binding{Kind: BindGlobal, Node: v}
			}
			r.replaceTop(r.Top().DefineVariableByReference(v.Name, target))
			r.stamp(v)
		}
		r.stamp(n)
		return false

	case *ast.StaticVar:
		for _, item := range n.Vars {
			if item.Default != nil {
				ast.Walk(r, item.Default)
			}
			if item.Var != nil && item.Var.Name != "" {
				r.replaceTop(r.Top().DefineVariableByValue(item.Var.Name, item))
				r.stamp(item.Var)
			}
			r.stamp(item)
		}
		r.stamp(n)
		return false

	case *ast.Assign:
		r.assign(n, n.Var, n.Expr, n.ByRef)
		return false

	case *ast.AssignOp:
		r.assign(n, n.Var, n.Expr, false)
		return false

	case *ast.Foreach:
		ast.Walk(r, n.Expr)
		for _, target := range []ast.Expr{n.Key, n.Value} {
			if target == nil {
				continue
			}
			ast.Walk(r, target)
			r.bindTargets(target, n)
		}
		r.stamp(n)
		for _, s := range n.Stmts {
			ast.Walk(r, s)
		}
		return false

	case *ast.Catch:
		if n.Var != nil && n.Var.Name != "" {
			r.replaceTop(r.Top().DefineVariableByValue(n.Var.Name, n))
			r.stamp(n.Var)
		}
		r.stamp(n)
		for _, s := range n.Stmts {
			ast.Walk(r, s)
		}
		return false

	case *ast.Unset:
		for _, e := range n.Vars {
			ast.Walk(r, e)
			if v, ok := e.(*ast.Variable); ok && v.Name != "" {
				r.replaceTop(r.Top().UnsetVariable(v.Name))
			}
		}
		r.stamp(n)
		return false

	case *ast.BadStmt, *ast.BadExpr:
		r.ignored[n.Kind()]++
		r.logger.Debug("Ignoring unrecognized node", zap.String("kind", n.Kind().String()), zap.Int("line", n.Line()))
		r.stamp(n)
		return false
	}

	r.stamp(n)
	return true
}

// Leave implements ast.Visitor.
func (r *Resolver) Leave(n ast.Node) {
	if r.err != nil {
		return
	}
	switch n.(type) {
	case *ast.Namespace, *ast.Function, *ast.Class, *ast.Method, *ast.Closure:
		r.pop()
	}
}

// assign resolves an assignment: the value and the evaluated parts of the
// target see the environment before the assignment, and the assignment
// node records the environment after it.
func (r *Resolver) assign(n ast.Node, target, value ast.Expr, byRef bool) {
	ast.Walk(r, value)
	ast.Walk(r, target)
	if r.err != nil {
		return
	}

	if v, ok := target.(*ast.Variable); ok && byRef && v.Name != "" {
		if src, ok := value.(*ast.Variable); ok && src.Name != "" {
			if b, err := r.Top().ResolveVariable(src.Name); err == nil {
				r.replaceTop(r.Top().DefineVariableByReference(v.Name, b))
				r.stamp(n)
				return
			}
		}
	}
	r.bindTargets(target, n)
	r.stamp(n)
}

// bindTargets binds every variable written by target to def. Writing an
// element or property rebinds the whole container variable.
func (r *Resolver) bindTargets(target ast.Expr, def ast.Node) {
	switch t := target.(type) {
	case *ast.Variable:
		if t.Name != "" {
			r.replaceTop(r.Top().DefineVariableByValue(t.Name, def))
		}
	case *ast.ArrayDimFetch:
		r.bindTargets(t.Var, def)
	case *ast.PropertyFetch:
		r.bindTargets(t.Var, def)
	case *ast.List:
		for _, item := range t.Items {
			if item != nil && item.Value != nil {
				r.bindTargets(item.Value, def)
			}
		}
	case *ast.Array:
		for _, item := range t.Items {
			if item != nil && item.Value != nil {
				r.bindTargets(item.Value, def)
			}
		}
	}
}

// ContainerVariable returns the variable a write to target rebinds, or nil
// when target does not name one.
func ContainerVariable(target ast.Expr) *ast.Variable {
	for {
		switch t := target.(type) {
		case *ast.Variable:
			if t.Name == "" {
				return nil
			}
			return t
		case *ast.ArrayDimFetch:
			target = t.Var
		case *ast.PropertyFetch:
			target = t.Var
		default:
			return nil
		}
	}
}

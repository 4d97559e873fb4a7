// Package environment models PHP's lexical scopes as a chain of immutable
// environments and annotates a syntax tree with the environment visible at
// every node.
//
// Variable tables are never mutated once an environment is published:
// binding a variable forks a child environment that overrides the name, so
// an environment captured at any point of the traversal remains a valid
// snapshot of the bindings visible there. Namespace and class declaration
// tables are append-only and shared.
package environment

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// BindingKind says how a variable came to be bound.
type BindingKind int

const (
	// BindValue is an assignment, foreach target, list target or static
	// declaration. Node is the defining *ast.Assign, *ast.AssignOp,
	// *ast.Foreach, *ast.StaticVarItem, *ast.Catch or, in a class scope,
	// *ast.PropertyItem.
	BindValue BindingKind = iota
	// BindParameter is a formal parameter. Node is the *ast.Param.
	BindParameter
	// BindSuperglobal is one of the interpreter-provided superglobals.
	BindSuperglobal
	// BindGlobal is a `global` import of a name with no global definition.
	BindGlobal
	// BindCapture is a closure `use` of a name with no enclosing definition.
	BindCapture
	// BindUnset marks a variable removed by unset(). It resolves as unbound.
	BindUnset
)

func (k BindingKind) String() string {
	switch k {
	case BindValue:
		return "value"
	case BindParameter:
		return "parameter"
	case BindSuperglobal:
		return "superglobal"
	case BindGlobal:
		return "global"
	case BindCapture:
		return "capture"
	case BindUnset:
		return "unset"
	}
	return "unknown"
}

// Binding associates a variable with the node that defined it. Bindings are
// shared by pointer between environments that alias the same variable.
type Binding struct {
	Kind BindingKind
	Node ast.Node
}

// Environment is a lexical scope. All implementations live in this package.
type Environment interface {
	// Parent is the enclosing environment, nil for the global environment.
	Parent() Environment
	// Name describes the scope, e.g. the namespace path or function name.
	Name() string
	// Global returns the root of the chain.
	Global() *GlobalEnvironment
	// Namespace returns the nearest enclosing true namespace.
	Namespace() (*NamespaceEnvironment, error)

	ResolveVariable(name string) (*Binding, error)
	ResolveFunction(name string) (*ast.Function, error)
	ResolveClass(name string) (*ClassEnvironment, error)
	ResolveConstant(name string) (*ast.ConstItem, error)
	ResolveNamespace(name string) (*NamespaceEnvironment, error)

	// DefineVariableByValue returns a child environment in which name is
	// bound to the defining node. The receiver is not modified.
	DefineVariableByValue(name string, def ast.Node) Environment
	// DefineVariableByReference returns a child environment in which name
	// shares target with whichever scope target came from.
	DefineVariableByReference(name string, target *Binding) Environment
	// UnsetVariable returns a child environment in which name is unbound.
	UnsetVariable(name string) Environment
	// CreateChild returns an empty, non-boundary child scope.
	CreateChild() Environment

	// CreateFunction registers decl in the enclosing namespace and returns
	// the environment of its body with the parameters bound.
	CreateFunction(decl *ast.Function) (Environment, error)
	// CreateClass registers decl in the enclosing namespace.
	CreateClass(decl *ast.Class) (*ClassEnvironment, error)
	// CreateClosure returns the environment of a closure body. Captured
	// variables share the binding visible in the receiver.
	CreateClosure(decl *ast.Closure) Environment
	// DefineConstant registers a constant in the enclosing namespace or
	// class.
	DefineConstant(item *ast.ConstItem) error

	// LocalVariables lists the names bound directly in this environment.
	LocalVariables() []string

	base() *chain
}

// chain is the state shared by every environment type.
type chain struct {
	self     Environment
	parent   Environment
	name     string
	vars     map[string]*Binding
	boundary bool
	global   *GlobalEnvironment
	// ns is set on true namespaces only.
	ns *NamespaceEnvironment
}

func newChain(self, parent Environment, name string, boundary bool) chain {
	c := chain{
		self:     self,
		parent:   parent,
		name:     name,
		vars:     make(map[string]*Binding),
		boundary: boundary,
	}
	if parent != nil {
		c.global = parent.Global()
	}
	if boundary && c.global != nil {
		for name, b := range c.global.superglobals {
			c.vars[name] = b
		}
	}
	return c
}

func (c *chain) base() *chain               { return c }
func (c *chain) Parent() Environment        { return c.parent }
func (c *chain) Name() string               { return c.name }
func (c *chain) Global() *GlobalEnvironment { return c.global }

// Namespace walks up the chain, skipping any environment that is not a true
// namespace.
func (c *chain) Namespace() (*NamespaceEnvironment, error) {
	for e := c.self; e != nil; e = e.Parent() {
		if ns := e.base().ns; ns != nil {
			return ns, nil
		}
	}
	return nil, &StructuralError{Op: "namespace lookup", Reason: "no enclosing namespace for " + c.name}
}

// ResolveVariable looks name up in this table and then in its ancestors,
// stopping after the first hard scope boundary.
func (c *chain) ResolveVariable(name string) (*Binding, error) {
	for e := c.self; e != nil; e = e.Parent() {
		b := e.base()
		if binding, ok := b.vars[name]; ok {
			if binding.Kind == BindUnset {
				break
			}
			return binding, nil
		}
		if b.boundary {
			break
		}
	}
	return nil, unbound(KindVariable, name, c.self)
}

func (c *chain) ResolveFunction(name string) (*ast.Function, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	return ns.ResolveFunction(name)
}

func (c *chain) ResolveClass(name string) (*ClassEnvironment, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	return ns.ResolveClass(name)
}

func (c *chain) ResolveConstant(name string) (*ast.ConstItem, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	return ns.ResolveConstant(name)
}

func (c *chain) ResolveNamespace(name string) (*NamespaceEnvironment, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	return ns.ResolveNamespace(name)
}

func (c *chain) fork(name string, b *Binding) Environment {
	child := c.self.CreateChild()
	child.base().vars[name] = b
	return child
}

func (c *chain) DefineVariableByValue(name string, def ast.Node) Environment {
	return c.fork(name, &Binding{Kind: BindValue, Node: def})
}

func (c *chain) DefineVariableByReference(name string, target *Binding) Environment {
	return c.fork(name, target)
}

func (c *chain) UnsetVariable(name string) Environment {
	return c.fork(name, &Binding{Kind: BindUnset})
}

func (c *chain) CreateFunction(decl *ast.Function) (Environment, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	ns.functions[strings.ToLower(decl.Name)] = decl
	return newFunctionScope(c.self, qualify(ns.name, decl.Name), decl.Params), nil
}

func (c *chain) CreateClass(decl *ast.Class) (*ClassEnvironment, error) {
	ns, err := c.Namespace()
	if err != nil {
		return nil, err
	}
	class := newClassEnvironment(c.self, qualify(ns.name, decl.Name), decl)
	ns.classes[strings.ToLower(decl.Name)] = class
	return class, nil
}

func (c *chain) CreateClosure(decl *ast.Closure) Environment {
	s := &Scope{}
	s.chain = newChain(s, c.self, c.name+`\{closure}`, !decl.Arrow)
	bindParams(s.vars, decl.Params)
	for _, use := range decl.Uses {
		if use.Var == nil || use.Var.Name == "" {
			continue
		}
		if b, err := c.ResolveVariable(use.Var.Name); err == nil {
			s.vars[use.Var.Name] = b
			continue
		}
		s.vars[use.Var.Name] = &Binding{Kind: BindCapture, Node: use.Var}
	}
	return s
}

func (c *chain) DefineConstant(item *ast.ConstItem) error {
	ns, err := c.Namespace()
	if err != nil {
		return err
	}
	return ns.DefineConstant(item)
}

func (c *chain) LocalVariables() []string {
	out := make([]string, 0, len(c.vars))
	for name := range c.vars {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Scope is the environment of a function, method or closure body, or a
// fork of such an environment.
type Scope struct {
	chain
}

func newFunctionScope(parent Environment, name string, params []*ast.Param) *Scope {
	s := &Scope{}
	s.chain = newChain(s, parent, name, true)
	bindParams(s.vars, params)
	return s
}

func bindParams(vars map[string]*Binding, params []*ast.Param) {
	for _, p := range params {
		vars[p.Name] = &Binding{Kind: BindParameter, Node: p}
	}
}

// IsBoundary reports whether variable lookups stop at this scope.
func (s *Scope) IsBoundary() bool { return s.boundary }

func (s *Scope) CreateChild() Environment {
	child := &Scope{}
	child.chain = newChain(child, s, s.name, false)
	return child
}

// ContinuationEnvironment continues a namespace after a variable binding.
// It holds variables like any scope and forwards namespace-level
// declarations and lookups to the nearest enclosing true namespace.
type ContinuationEnvironment struct {
	chain
}

func (c *ContinuationEnvironment) CreateChild() Environment {
	child := &ContinuationEnvironment{}
	child.chain = newChain(child, c, c.name, false)
	return child
}

// ClassEnvironment is the scope of a class body. It owns the class's method,
// property and constant tables and, like a function, does not inherit
// variables from its surroundings.
type ClassEnvironment struct {
	chain
	Decl       *ast.Class
	methods    map[string]*ast.Method
	properties map[string]*ast.PropertyItem
	constants  map[string]*ast.ConstItem
}

func newClassEnvironment(parent Environment, name string, decl *ast.Class) *ClassEnvironment {
	c := &ClassEnvironment{
		Decl:       decl,
		methods:    make(map[string]*ast.Method),
		properties: make(map[string]*ast.PropertyItem),
		constants:  make(map[string]*ast.ConstItem),
	}
	c.chain = newChain(c, parent, name, true)
	return c
}

func (c *ClassEnvironment) CreateChild() Environment {
	child := &Scope{}
	child.chain = newChain(child, c, c.name, false)
	return child
}

// CreateMethod registers decl and returns the environment of its body.
// Method bodies see neither the class's properties nor the surrounding
// variables through plain variable lookup.
func (c *ClassEnvironment) CreateMethod(decl *ast.Method) Environment {
	c.methods[strings.ToLower(decl.Name)] = decl
	s := newFunctionScope(c, c.name+"::"+decl.Name, decl.Params)
	if !decl.Static {
		s.vars["$this"] = &Binding{Kind: BindValue, Node: c.Decl}
	}
	return s
}

// DefineProperty records a declared property and binds it as a variable of
// the class scope. Like methods, properties are declarations of the class
// body and are added to its own table rather than forked.
func (c *ClassEnvironment) DefineProperty(item *ast.PropertyItem) {
	name := strings.TrimPrefix(item.Name, "$")
	c.properties[name] = item
	c.vars["$"+name] = &Binding{Kind: BindValue, Node: item}
}

// DefineConstant records a class constant.
func (c *ClassEnvironment) DefineConstant(item *ast.ConstItem) error {
	c.constants[item.Name] = item
	return nil
}

func (c *ClassEnvironment) ResolveMethod(name string) (*ast.Method, error) {
	if m, ok := c.methods[strings.ToLower(name)]; ok {
		return m, nil
	}
	return nil, unbound(KindMethod, name, c)
}

func (c *ClassEnvironment) ResolveProperty(name string) (*ast.PropertyItem, error) {
	if p, ok := c.properties[strings.TrimPrefix(name, "$")]; ok {
		return p, nil
	}
	return nil, unbound(KindProperty, name, c)
}

func (c *ClassEnvironment) ResolveClassConstant(name string) (*ast.ConstItem, error) {
	if k, ok := c.constants[name]; ok {
		return k, nil
	}
	return nil, unbound(KindConstant, name, c)
}

func qualify(ns, name string) string {
	if ns == "" || ns == `\` {
		return name
	}
	return ns + `\` + name
}

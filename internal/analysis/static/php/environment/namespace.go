package environment

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// NamespaceEnvironment owns the declaration tables of one PHP namespace.
// Function, class and namespace names are case-insensitive; constant names
// are case-sensitive.
type NamespaceEnvironment struct {
	chain
	functions  map[string]*ast.Function
	classes    map[string]*ClassEnvironment
	namespaces map[string]*NamespaceEnvironment
	constants  map[string]*ast.ConstItem
}

func newNamespace(self, parent Environment, name string) *NamespaceEnvironment {
	n := &NamespaceEnvironment{
		functions:  make(map[string]*ast.Function),
		classes:    make(map[string]*ClassEnvironment),
		namespaces: make(map[string]*NamespaceEnvironment),
		constants:  make(map[string]*ast.ConstItem),
	}
	if self == nil {
		self = n
	}
	n.chain = newChain(self, parent, name, false)
	n.ns = n
	return n
}

// CreateChild returns a continuation of this namespace.
func (n *NamespaceEnvironment) CreateChild() Environment {
	child := &ContinuationEnvironment{}
	child.chain = newChain(child, n.self, n.name, false)
	return child
}

func (n *NamespaceEnvironment) Namespace() (*NamespaceEnvironment, error) {
	return n, nil
}

// lookup splits a possibly qualified name into the namespace that owns its
// last segment and that segment.
//
//	\A\b  resolves A from the global root
//	b     is looked up in n
//	A\b   resolves A in n, then b in A
func (n *NamespaceEnvironment) lookup(name string, kind IdentifierKind) (*NamespaceEnvironment, string, error) {
	if strings.HasPrefix(name, `\`) {
		return n.global.NamespaceEnvironment.lookup(name[1:], kind)
	}
	first, rest, qualified := strings.Cut(name, `\`)
	if !qualified {
		if name == "" {
			return nil, "", unbound(kind, name, n)
		}
		return n, name, nil
	}
	child, ok := n.namespaces[strings.ToLower(first)]
	if !ok {
		return nil, "", unbound(KindNamespace, first, n)
	}
	return child.lookup(rest, kind)
}

func (n *NamespaceEnvironment) ResolveFunction(name string) (*ast.Function, error) {
	owner, local, err := n.lookup(name, KindFunction)
	if err != nil {
		return nil, err
	}
	if fn, ok := owner.functions[strings.ToLower(local)]; ok {
		return fn, nil
	}
	return nil, unbound(KindFunction, name, n)
}

func (n *NamespaceEnvironment) ResolveClass(name string) (*ClassEnvironment, error) {
	owner, local, err := n.lookup(name, KindClass)
	if err != nil {
		return nil, err
	}
	if class, ok := owner.classes[strings.ToLower(local)]; ok {
		return class, nil
	}
	return nil, unbound(KindClass, name, n)
}

func (n *NamespaceEnvironment) ResolveConstant(name string) (*ast.ConstItem, error) {
	owner, local, err := n.lookup(name, KindConstant)
	if err != nil {
		return nil, err
	}
	if k, ok := owner.constants[local]; ok {
		return k, nil
	}
	return nil, unbound(KindConstant, name, n)
}

func (n *NamespaceEnvironment) ResolveNamespace(name string) (*NamespaceEnvironment, error) {
	owner, local, err := n.lookup(name, KindNamespace)
	if err != nil {
		return nil, err
	}
	if child, ok := owner.namespaces[strings.ToLower(local)]; ok {
		return child, nil
	}
	return nil, unbound(KindNamespace, name, n)
}

// CreateNamespace returns the namespace with the given path relative to n,
// creating missing segments. An absolute path starts from the global
// namespace. Reopening an existing namespace returns the same environment.
func (n *NamespaceEnvironment) CreateNamespace(path string) *NamespaceEnvironment {
	current := n
	if strings.HasPrefix(path, `\`) {
		current = n.global.NamespaceEnvironment
		path = path[1:]
	}
	for _, segment := range strings.Split(path, `\`) {
		if segment == "" {
			continue
		}
		key := strings.ToLower(segment)
		child, ok := current.namespaces[key]
		if !ok {
			child = newNamespace(nil, current.self, qualify(current.name, segment))
			current.namespaces[key] = child
		}
		current = child
	}
	return current
}

func (n *NamespaceEnvironment) DefineConstant(item *ast.ConstItem) error {
	n.constants[item.Name] = item
	return nil
}

// Functions lists the names of the functions declared directly in n.
func (n *NamespaceEnvironment) Functions() []string {
	out := make([]string, 0, len(n.functions))
	for _, fn := range n.functions {
		out = append(out, fn.Name)
	}
	sort.Strings(out)
	return out
}

// Superglobals are visible in every scope without a `global` import.
var Superglobals = []string{
	"$GLOBALS",
	"$_SERVER",
	"$_GET",
	"$_POST",
	"$_FILES",
	"$_COOKIE",
	"$_SESSION",
	"$_REQUEST",
	"$_ENV",
}

// GlobalEnvironment is the root of every environment chain and the table
// of the global namespace.
type GlobalEnvironment struct {
	*NamespaceEnvironment
	superglobals map[string]*Binding
}

// NewGlobal creates a global environment with the superglobals bound.
func NewGlobal() *GlobalEnvironment {
	g := &GlobalEnvironment{superglobals: make(map[string]*Binding, len(Superglobals))}
	g.NamespaceEnvironment = newNamespace(g, nil, "")
	g.global = g
	for _, name := range Superglobals {
		b := &Binding{Kind: BindSuperglobal}
		g.superglobals[name] = b
		g.vars[name] = b
	}
	return g
}

func (g *GlobalEnvironment) Name() string { return `\` }

// IsSuperglobal reports whether b is one of the superglobal bindings.
func (g *GlobalEnvironment) IsSuperglobal(name string, b *Binding) bool {
	sg, ok := g.superglobals[name]
	return ok && sg == b
}

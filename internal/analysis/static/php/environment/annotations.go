package environment

import "github.com/xkilldash9x/phortress/internal/php/ast"

// Annotations is the side table produced by a Resolver: it maps each node
// of a tree to the environment visible at that node. Scope-introducing
// nodes map to the environment of their body; assignments map to the
// environment that contains the new binding.
type Annotations struct {
	global *GlobalEnvironment
	envs   map[ast.Node]Environment
}

// NewAnnotations creates an empty table rooted at global.
func NewAnnotations(global *GlobalEnvironment) *Annotations {
	return &Annotations{global: global, envs: make(map[ast.Node]Environment)}
}

// Global returns the root environment the annotated tree was resolved in.
func (a *Annotations) Global() *GlobalEnvironment { return a.global }

// Set records env for n, replacing any previous entry.
func (a *Annotations) Set(n ast.Node, env Environment) { a.envs[n] = env }

// Lookup returns the environment recorded for n.
func (a *Annotations) Lookup(n ast.Node) (Environment, bool) {
	env, ok := a.envs[n]
	return env, ok
}

// EnvironmentOf returns the environment recorded for n, or the global
// environment when n was never annotated.
func (a *Annotations) EnvironmentOf(n ast.Node) Environment {
	if env, ok := a.envs[n]; ok {
		return env
	}
	return a.global
}

// Len is the number of annotated nodes.
func (a *Annotations) Len() int { return len(a.envs) }

package sources

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// Registry answers source, sanitizer and sink queries. It is read-only
// after construction and safe for concurrent use. Function names are
// matched case-insensitively; variable names exactly.
type Registry struct {
	inputVariables map[string]struct{}
	inputFunctions map[string]struct{}
	sanitizers     map[string]map[VulnerabilityClass]struct{}
	reversers      map[string]string
	sinks          map[string]SinkDefinition
}

// New builds a registry from defs.
func New(defs Definitions) *Registry {
	r := &Registry{
		inputVariables: make(map[string]struct{}),
		inputFunctions: make(map[string]struct{}),
		sanitizers:     make(map[string]map[VulnerabilityClass]struct{}),
		reversers:      make(map[string]string),
		sinks:          make(map[string]SinkDefinition),
	}
	r.add(defs)
	return r
}

// Default builds a registry from DefaultDefinitions.
func Default() *Registry {
	return New(DefaultDefinitions())
}

// Extend returns a new registry holding the receiver's definitions plus
// defs. Sinks in defs replace sinks of the same name.
func (r *Registry) Extend(defs Definitions) *Registry {
	out := New(r.Definitions())
	out.add(defs)
	return out
}

func (r *Registry) add(defs Definitions) {
	for _, v := range defs.InputVariables {
		if !strings.HasPrefix(v, "$") {
			v = "$" + v
		}
		r.inputVariables[v] = struct{}{}
	}
	for _, f := range defs.InputFunctions {
		r.inputFunctions[strings.ToLower(f)] = struct{}{}
	}
	for _, s := range defs.Sanitizers {
		name := strings.ToLower(s.Name)
		classes, ok := r.sanitizers[name]
		if !ok {
			classes = make(map[VulnerabilityClass]struct{})
			r.sanitizers[name] = classes
		}
		for _, c := range s.Protects {
			classes[c] = struct{}{}
		}
	}
	for _, rev := range defs.Reversers {
		r.reversers[strings.ToLower(rev.Name)] = strings.ToLower(rev.Undoes)
	}
	for _, s := range defs.Sinks {
		s.Name = strings.ToLower(s.Name)
		r.sinks[s.Name] = s
	}
}

// Definitions returns the registry contents in a stable order.
func (r *Registry) Definitions() Definitions {
	var defs Definitions
	for v := range r.inputVariables {
		defs.InputVariables = append(defs.InputVariables, v)
	}
	for f := range r.inputFunctions {
		defs.InputFunctions = append(defs.InputFunctions, f)
	}
	for name, classes := range r.sanitizers {
		s := SanitizerDefinition{Name: name}
		for c := range classes {
			s.Protects = append(s.Protects, c)
		}
		sort.Slice(s.Protects, func(i, j int) bool { return s.Protects[i] < s.Protects[j] })
		defs.Sanitizers = append(defs.Sanitizers, s)
	}
	for name, undoes := range r.reversers {
		defs.Reversers = append(defs.Reversers, ReverserDefinition{Name: name, Undoes: undoes})
	}
	for _, s := range r.sinks {
		defs.Sinks = append(defs.Sinks, s)
	}
	sort.Strings(defs.InputVariables)
	sort.Strings(defs.InputFunctions)
	sort.Slice(defs.Sanitizers, func(i, j int) bool { return defs.Sanitizers[i].Name < defs.Sanitizers[j].Name })
	sort.Slice(defs.Reversers, func(i, j int) bool { return defs.Reversers[i].Name < defs.Reversers[j].Name })
	sort.Slice(defs.Sinks, func(i, j int) bool { return defs.Sinks[i].Name < defs.Sinks[j].Name })
	return defs
}

func (r *Registry) IsInputVariable(v *ast.Variable) bool {
	if v == nil {
		return false
	}
	_, ok := r.inputVariables[v.Name]
	return ok
}

func (r *Registry) IsInputFunction(name string) bool {
	_, ok := r.inputFunctions[normalize(name)]
	return ok
}

func (r *Registry) IsSanitisingFunction(name string) bool {
	_, ok := r.sanitizers[normalize(name)]
	return ok
}

func (r *Registry) IsSanitisingReverseFunction(name string) bool {
	_, ok := r.reversers[normalize(name)]
	return ok
}

func (r *Registry) AffectedSanitiser(name string) string {
	return r.reversers[normalize(name)]
}

// Protects reports whether sanitizer makes a value safe for class.
func (r *Registry) Protects(sanitizer string, class VulnerabilityClass) bool {
	classes, ok := r.sanitizers[normalize(sanitizer)]
	if !ok {
		return false
	}
	if _, all := classes[ClassAll]; all {
		return true
	}
	_, ok = classes[class]
	return ok
}

// Sink returns the sink definition for a function or construct name.
func (r *Registry) Sink(name string) (SinkDefinition, bool) {
	s, ok := r.sinks[normalize(name)]
	return s, ok
}

// Sensitive reports whether argument position i of the sink is checked.
func (s SinkDefinition) Sensitive(i int) bool {
	if len(s.Args) == 0 {
		return true
	}
	for _, a := range s.Args {
		if a == i {
			return true
		}
	}
	return false
}

func normalize(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

package taint

import (
	"sort"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// SanitizerSet is the set of sanitizer function names a value has passed
// through. Operations never modify the receiver.
type SanitizerSet map[string]struct{}

// NewSanitizerSet builds a set from names.
func NewSanitizerSet(names ...string) SanitizerSet {
	s := make(SanitizerSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s SanitizerSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s SanitizerSet) Clone() SanitizerSet {
	out := make(SanitizerSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// With returns a copy of s that also contains name.
func (s SanitizerSet) With(name string) SanitizerSet {
	out := s.Clone()
	out[name] = struct{}{}
	return out
}

// Without returns a copy of s with name removed.
func (s SanitizerSet) Without(name string) SanitizerSet {
	out := s.Clone()
	delete(out, name)
	return out
}

// Union returns a new set holding the members of s and other.
func (s SanitizerSet) Union(other SanitizerSet) SanitizerSet {
	out := s.Clone()
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Names returns the members in sorted order.
func (s SanitizerSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// VariableInfo is what the analyser knows about one variable or synthetic
// dependency of an expression.
type VariableInfo struct {
	Name       string
	Taint      Annotation
	Sanitizers SanitizerSet
	// Definition is the node that bound the variable, nil for parameters,
	// sources and unresolved names.
	Definition ast.Node
	// Param is set when the variable is a parameter of the analysed function.
	Param *ast.Param
	// Unresolved is set when no binding could be found.
	Unresolved bool
}

// IsParameter reports whether the dependency names a function parameter.
func (v *VariableInfo) IsParameter() bool { return v.Param != nil }

// Copy returns an independent copy of v.
func (v *VariableInfo) Copy() *VariableInfo {
	out := *v
	out.Sanitizers = v.Sanitizers.Clone()
	return &out
}

// Dependencies maps a variable (or synthetic dependency) name to what is
// known about it. Values are treated as immutable once placed in a map.
type Dependencies map[string]*VariableInfo

// Merge returns the key-wise union of maps. For keys present in more than
// one map the taint is joined and the sanitizer sets are unioned.
func Merge(maps ...Dependencies) Dependencies {
	out := make(Dependencies)
	for _, m := range maps {
		for name, info := range m {
			existing, ok := out[name]
			if !ok {
				out[name] = info
				continue
			}
			merged := existing.Copy()
			merged.Taint = merged.Taint.Join(info.Taint)
			merged.Sanitizers = merged.Sanitizers.Union(info.Sanitizers)
			if merged.Param == nil {
				merged.Param = info.Param
			}
			out[name] = merged
		}
	}
	return out
}

// WithSanitizer returns a copy of d in which every dependency has passed
// through the named sanitizer.
func (d Dependencies) WithSanitizer(name string) Dependencies {
	out := make(Dependencies, len(d))
	for k, info := range d {
		c := info.Copy()
		c.Sanitizers = info.Sanitizers.With(name)
		out[k] = c
	}
	return out
}

// WithoutSanitizer returns a copy of d in which no dependency carries the
// named sanitizer.
func (d Dependencies) WithoutSanitizer(name string) Dependencies {
	out := make(Dependencies, len(d))
	for k, info := range d {
		if !info.Sanitizers.Has(name) {
			out[k] = info
			continue
		}
		c := info.Copy()
		c.Sanitizers = info.Sanitizers.Without(name)
		out[k] = c
	}
	return out
}

// Through returns a copy of d as seen after flowing through the parameter
// dependency p: taints are joined with p's and p's sanitizers are added.
func (d Dependencies) Through(p *VariableInfo) Dependencies {
	out := make(Dependencies, len(d))
	for k, info := range d {
		c := info.Copy()
		c.Taint = c.Taint.Join(p.Taint)
		c.Sanitizers = c.Sanitizers.Union(p.Sanitizers)
		out[k] = c
	}
	return out
}

// Names returns the dependency names in sorted order.
func (d Dependencies) Names() []string {
	out := make([]string, 0, len(d))
	for n := range d {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Result is the resolved taint of a value: its lattice point and every
// sanitizer applied on any path.
type Result struct {
	Taint      Annotation
	Sanitizers SanitizerSet
}

// Summarize joins the taint of every dependency and unions their sanitizers.
func (d Dependencies) Summarize() Result {
	res := Result{Taint: Unassigned, Sanitizers: SanitizerSet{}}
	for _, info := range d {
		res.Taint = res.Taint.Join(info.Taint)
		res.Sanitizers = res.Sanitizers.Union(info.Sanitizers)
	}
	return res
}

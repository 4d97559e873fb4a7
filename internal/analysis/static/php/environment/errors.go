package environment

import (
	"errors"
	"fmt"
)

// ErrUnboundIdentifier is matched by every UnboundIdentifierError.
var ErrUnboundIdentifier = errors.New("unbound identifier")

// ErrStructuralInvariant is matched by every StructuralError. It signals a
// malformed tree or a bug in the resolver and is fatal for the file.
var ErrStructuralInvariant = errors.New("structural invariant violated")

// IdentifierKind names the table an identifier was looked up in.
type IdentifierKind int

const (
	KindVariable IdentifierKind = iota
	KindFunction
	KindClass
	KindConstant
	KindNamespace
	KindMethod
	KindProperty
)

func (k IdentifierKind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindConstant:
		return "constant"
	case KindNamespace:
		return "namespace"
	case KindMethod:
		return "method"
	case KindProperty:
		return "property"
	}
	return "identifier"
}

// UnboundIdentifierError is returned when a name has no binding in the
// environment chain it was resolved against. It is recoverable.
type UnboundIdentifierError struct {
	Kind IdentifierKind
	Name string
	// Scope is the name of the environment the lookup started from.
	Scope string
}

func (e *UnboundIdentifierError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("unbound %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("unbound %s %q in %s", e.Kind, e.Name, e.Scope)
}

// Is allows errors.Is(err, ErrUnboundIdentifier).
func (e *UnboundIdentifierError) Is(target error) bool {
	return target == ErrUnboundIdentifier
}

func unbound(kind IdentifierKind, name string, env Environment) error {
	scope := ""
	if env != nil {
		scope = env.Name()
	}
	return &UnboundIdentifierError{Kind: kind, Name: name, Scope: scope}
}

// StructuralError reports a violation of the environment model's shape,
// such as leaving the global environment or declaring a method outside a
// class.
type StructuralError struct {
	Op     string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is allows errors.Is(err, ErrStructuralInvariant).
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructuralInvariant
}

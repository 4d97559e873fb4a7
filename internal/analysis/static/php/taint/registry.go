package taint

import "github.com/xkilldash9x/phortress/internal/php/ast"

// Registry classifies names as taint sources and sanitizers. Function names
// are passed without a leading namespace separator.
type Registry interface {
	// IsInputVariable reports whether reading v yields untrusted input.
	IsInputVariable(v *ast.Variable) bool
	// IsInputFunction reports whether the function returns untrusted input.
	IsInputFunction(name string) bool
	// IsSanitisingFunction reports whether the function is a sanitizer.
	IsSanitisingFunction(name string) bool
	// IsSanitisingReverseFunction reports whether the function undoes a
	// sanitizer.
	IsSanitisingReverseFunction(name string) bool
	// AffectedSanitiser names the sanitizer a reverse function undoes.
	AffectedSanitiser(name string) string
}

// Package taint implements the taint dataflow engine for PHP: the taint
// lattice, per-variable dependency records, function summaries and the
// call-site taint query.
package taint

// Annotation is a point in the taint lattice, ordered
// Unassigned < Unknown < Tainted. Safety is expressed only by the absence
// of a path to Tainted and by sanitizer sets.
type Annotation int

const (
	// Unassigned means no information has been observed.
	Unassigned Annotation = iota
	// Unknown means the value could not be resolved statically.
	Unknown
	// Tainted means the value is derived from untrusted input.
	Tainted
)

func (a Annotation) String() string {
	switch a {
	case Unassigned:
		return "UNASSIGNED"
	case Unknown:
		return "UNKNOWN"
	case Tainted:
		return "TAINTED"
	}
	return "INVALID"
}

// Join returns the least upper bound of a and b.
func (a Annotation) Join(b Annotation) Annotation {
	if b > a {
		return b
	}
	return a
}

// JoinAll folds Join over annotations, starting from Unassigned.
func JoinAll(annotations ...Annotation) Annotation {
	out := Unassigned
	for _, a := range annotations {
		out = out.Join(a)
	}
	return out
}

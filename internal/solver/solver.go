package solver

// Result of a satisfiability check.
type Result int

const (
	// Unknown means the solver could not decide (resource limits,
	// unsupported theory).
	Unknown Result = iota
	// True means a model exists.
	True
	// False means the query is certified unsatisfiable.
	False
)

func (r Result) String() string {
	switch r {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// Solver is the surface the symbolic-execution engine talks to. The
// injection wrapper implements it by interposing on another Solver.
type Solver interface {
	// Validity decides whether the query's constraints conjoined with its
	// goal admit a model.
	Validity(q Query) (Result, error)

	// Truth reports whether the goal holds in every model of the
	// constraints.
	Truth(q Query) (bool, error)

	// Value produces a concrete goal value from some model of the
	// constraints.
	Value(q Query) (uint64, error)

	// InitialValues produces concrete contents for the given arrays from
	// some model of the constraints.
	InitialValues(q Query, arrays []*Array) (map[string][]byte, error)
}

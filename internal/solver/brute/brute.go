package brute

import (
	"fmt"

	"vase/internal/solver"
)

// A bounded model-enumeration solver over small symbolic byte arrays.
// It decides queries by trying every assignment of the arrays they
// reference, which is exact and deterministic for the array sizes the
// test suites and demo tooling use. For queries over more than MaxBits
// of symbolic input, Validity returns Unknown and the other operations
// return an error rather than running slowly.

// Solver is the brute-force reference solver.
type Solver struct {
	// MaxBits caps the enumerated symbolic input size.
	MaxBits int
}

// New returns a solver with the default 24-bit enumeration cap.
func New() *Solver {
	return &Solver{MaxBits: 24}
}

var _ solver.Solver = (*Solver)(nil)

// Validity decides whether the constraints plus goal admit a model.
func (s *Solver) Validity(q solver.Query) (solver.Result, error) {
	arrays := queryArrays(q)
	if bits := totalBits(arrays); bits > s.MaxBits {
		return solver.Unknown, nil
	}
	found := false
	err := enumerate(arrays, func(env map[string][]byte) (bool, error) {
		ok, err := holds(q, env, true)
		if err != nil {
			return false, err
		}
		if ok {
			found = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return solver.Unknown, err
	}
	if found {
		return solver.True, nil
	}
	return solver.False, nil
}

// Truth reports whether the goal holds in every model of the
// constraints; with no models it is vacuously true.
func (s *Solver) Truth(q solver.Query) (bool, error) {
	if q.Goal == nil {
		return true, nil
	}
	arrays := queryArrays(q)
	if bits := totalBits(arrays); bits > s.MaxBits {
		return false, fmt.Errorf("query exceeds %d symbolic bits", s.MaxBits)
	}
	truth := true
	err := enumerate(arrays, func(env map[string][]byte) (bool, error) {
		ok, err := holds(q, env, false)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		goal, err := eval(q.Goal, env)
		if err != nil {
			return false, err
		}
		if goal == 0 {
			truth = false
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return truth, nil
}

// Value produces the goal's value under the first model of the
// constraints in enumeration order.
func (s *Solver) Value(q solver.Query) (uint64, error) {
	if q.Goal == nil {
		return 0, fmt.Errorf("value query without a goal")
	}
	env, err := s.firstModel(q)
	if err != nil {
		return 0, err
	}
	return eval(q.Goal, env)
}

// InitialValues produces concrete array contents from the first model
// of the constraints. Arrays the query never reads come back zeroed.
func (s *Solver) InitialValues(q solver.Query, arrays []*solver.Array) (map[string][]byte, error) {
	env, err := s.firstModel(q)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(arrays))
	for _, a := range arrays {
		if bytes, ok := env[a.Name]; ok {
			out[a.Name] = append([]byte(nil), bytes...)
		} else {
			out[a.Name] = make([]byte, a.Size)
		}
	}
	return out, nil
}

func (s *Solver) firstModel(q solver.Query) (map[string][]byte, error) {
	arrays := queryArrays(q)
	if bits := totalBits(arrays); bits > s.MaxBits {
		return nil, fmt.Errorf("query exceeds %d symbolic bits", s.MaxBits)
	}
	var model map[string][]byte
	err := enumerate(arrays, func(env map[string][]byte) (bool, error) {
		ok, err := holds(q, env, false)
		if err != nil {
			return false, err
		}
		if ok {
			model = make(map[string][]byte, len(env))
			for name, bytes := range env {
				model[name] = append([]byte(nil), bytes...)
			}
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("unsatisfiable query")
	}
	return model, nil
}

// holds evaluates the constraints (and, when withGoal, the goal) under
// env.
func holds(q solver.Query, env map[string][]byte, withGoal bool) (bool, error) {
	for _, c := range q.Constraints {
		v, err := eval(c, env)
		if err != nil {
			return false, err
		}
		if v == 0 {
			return false, nil
		}
	}
	if withGoal && q.Goal != nil {
		v, err := eval(q.Goal, env)
		if err != nil {
			return false, err
		}
		return v != 0, nil
	}
	return true, nil
}

// eval computes an expression under a concrete array assignment.
func eval(e solver.Expr, env map[string][]byte) (uint64, error) {
	switch n := e.(type) {
	case *solver.ConstantExpr:
		return n.Value, nil
	case *solver.ReadExpr:
		idx, err := eval(n.Index, env)
		if err != nil {
			return 0, err
		}
		bytes := env[n.Array.Name]
		if idx >= uint64(len(bytes)) {
			return 0, fmt.Errorf("read index %d out of range for %s", idx, n.Array.Name)
		}
		return uint64(bytes[idx]), nil
	case *solver.BinaryExpr:
		l, err := eval(n.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := eval(n.Right, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case solver.OpAdd:
			return mask(l+r, n.Width()), nil
		case solver.OpOr:
			return l | r, nil
		case solver.OpShl:
			if r >= 64 {
				return 0, nil
			}
			return mask(l<<r, n.Width()), nil
		case solver.OpEq:
			if l == r {
				return 1, nil
			}
			return 0, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	case *solver.ZExtExpr:
		return eval(n.Expr, env)
	case *solver.AnnotatedExpr:
		return eval(n.Expr, env)
	}
	return 0, fmt.Errorf("unsupported expression %T", e)
}

// enumerate drives fn over every assignment of the arrays, in
// little-endian counter order; fn returns false to stop early.
func enumerate(arrays []*solver.Array, fn func(map[string][]byte) (bool, error)) error {
	env := make(map[string][]byte, len(arrays))
	for _, a := range arrays {
		env[a.Name] = make([]byte, a.Size)
	}

	for {
		cont, err := fn(env)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		if !increment(arrays, env) {
			return nil
		}
	}
}

func increment(arrays []*solver.Array, env map[string][]byte) bool {
	for _, a := range arrays {
		bytes := env[a.Name]
		for i := range bytes {
			bytes[i]++
			if bytes[i] != 0 {
				return true
			}
		}
	}
	return false
}

// queryArrays lists the roots referenced by the query, in first-seen
// order across constraints then goal.
func queryArrays(q solver.Query) []*solver.Array {
	var arrays []*solver.Array
	seen := map[string]bool{}
	visit := func(e solver.Expr) bool {
		if read, ok := e.(*solver.ReadExpr); ok && !seen[read.Array.Name] {
			seen[read.Array.Name] = true
			arrays = append(arrays, read.Array)
		}
		return true
	}
	for _, c := range q.Constraints {
		solver.Walk(c, visit)
	}
	if q.Goal != nil {
		solver.Walk(q.Goal, visit)
	}
	return arrays
}

func totalBits(arrays []*solver.Array) int {
	bits := 0
	for _, a := range arrays {
		bits += a.Size * 8
	}
	return bits
}

func mask(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & ((uint64(1) << width) - 1)
}

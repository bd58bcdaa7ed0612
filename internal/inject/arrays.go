package inject

import (
	"vase/internal/solver"
)

// root is one retained symbolic array with its inferred access width.
type root struct {
	array *solver.Array
	bytes int
}

// scanRoots collects the symbolic root arrays a query reads, in
// first-seen order across constraints then goal, capped at MaxArrays.
// Bytes used per root is one plus the largest constant read index; a
// root read only at non-constant indices defaults to 4. The result is
// clamped to [1, MaxBytes].
func scanRoots(q solver.Query, cfg Config) []*root {
	type scan struct {
		maxConstIndex int64
		sawConst      bool
	}
	var order []*solver.Array
	scans := map[string]*scan{}

	visit := func(e solver.Expr) bool {
		read, ok := e.(*solver.ReadExpr)
		if !ok {
			return true
		}
		s, seen := scans[read.Array.Name]
		if !seen {
			s = &scan{}
			scans[read.Array.Name] = s
			order = append(order, read.Array)
		}
		if c, ok := read.Index.(*solver.ConstantExpr); ok {
			if !s.sawConst || int64(c.Value) > s.maxConstIndex {
				s.maxConstIndex = int64(c.Value)
			}
			s.sawConst = true
		}
		return true
	}
	for _, c := range q.Constraints {
		solver.Walk(c, visit)
	}
	if q.Goal != nil {
		solver.Walk(q.Goal, visit)
	}

	if len(order) > cfg.MaxArrays {
		order = order[:cfg.MaxArrays]
	}

	roots := make([]*root, 0, len(order))
	for _, a := range order {
		s := scans[a.Name]
		bytes := 4
		if s.sawConst {
			bytes = int(s.maxConstIndex) + 1
		}
		if bytes > cfg.MaxBytes {
			bytes = cfg.MaxBytes
		}
		if bytes < 1 {
			bytes = 1
		}
		roots = append(roots, &root{array: a, bytes: bytes})
	}
	return roots
}

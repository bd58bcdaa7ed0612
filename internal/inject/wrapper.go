package inject

import (
	"github.com/tliron/commonlog"

	"vase/internal/locate"
	"vase/internal/solver"
	"vase/internal/valuemap"
)

var log = commonlog.GetLogger("vase.inject")

// Wrapper interposes on an underlying solver. Every operation runs the
// same pipeline: locate the query's site, synthesize candidate equality
// augmentations from the site's limited values, and forward the first
// augmentation the underlying solver does not certify unsatisfiable;
// with no accepted candidate the original query is forwarded unchanged.
// Augmentations only ever add conjuncts, so the wrapper can narrow which
// model the engine sees but can never revive an unsatisfiable query.
type Wrapper struct {
	underlying solver.Solver
	cfg        Config
	loader     valuemap.Loader
}

var _ solver.Solver = (*Wrapper)(nil)

// New wraps underlying. The map loads lazily on the first operation.
func New(underlying solver.Solver, cfg Config) *Wrapper {
	return &Wrapper{underlying: underlying, cfg: cfg}
}

// Validity implements solver.Solver.
func (w *Wrapper) Validity(q solver.Query) (solver.Result, error) {
	return w.underlying.Validity(w.augment(q))
}

// Truth implements solver.Solver.
func (w *Wrapper) Truth(q solver.Query) (bool, error) {
	return w.underlying.Truth(w.augment(q))
}

// Value implements solver.Solver.
func (w *Wrapper) Value(q solver.Query) (uint64, error) {
	return w.underlying.Value(w.augment(q))
}

// InitialValues implements solver.Solver.
func (w *Wrapper) InitialValues(q solver.Query, arrays []*solver.Array) (map[string][]byte, error) {
	return w.underlying.InitialValues(w.augment(q), arrays)
}

// augment runs the locate/propose/try pipeline and returns the query to
// forward: the first accepted augmentation, or q itself.
func (w *Wrapper) augment(q solver.Query) solver.Query {
	m, state := w.loader.Load(w.cfg.MapPath)
	if state != valuemap.Ready || m.Len() == 0 {
		return q
	}

	key := locate.SiteKey(q)
	site, ok := m.SiteWithFallback(key)
	if !ok {
		return q
	}
	values := site.PooledInts(w.cfg.MaxValues)
	if len(values) == 0 {
		return q
	}

	roots := scanRoots(q, w.cfg)
	if len(roots) == 0 {
		return q
	}

	for _, v := range values {
		for _, cand := range w.candidates(roots, v) {
			aug := q.WithConstraints(cand.constraints...)
			res, err := w.underlying.Validity(aug)
			if err != nil {
				// Solver failure on a trial counts as rejection.
				continue
			}
			if res != solver.False {
				if w.cfg.Verbose {
					log.Noticef("injected %s candidate for value %d at %s", cand.class, v, key)
				}
				return aug
			}
		}
	}
	return q
}

// candidate is one proposed augmentation.
type candidate struct {
	class       string
	constraints []solver.Expr
}

// candidates synthesizes the augmentations for one limited value, in
// the documented order: bytewise equality per array, packed 32-bit
// equality per array, then the two-array sum.
func (w *Wrapper) candidates(roots []*root, v int64) []candidate {
	var out []candidate
	for _, r := range roots {
		out = append(out, candidate{class: "bytewise", constraints: bytewiseEq(r, v)})
	}
	for _, r := range roots {
		if r.bytes <= 4 {
			out = append(out, candidate{class: "packed", constraints: []solver.Expr{
				solver.Eq(pack(r), solver.Constant(uint64(uint32(v)), 32)),
			}})
		}
	}
	if w.cfg.TryPairs && len(roots) == 2 && roots[0].bytes <= 4 && roots[1].bytes <= 4 {
		out = append(out, candidate{class: "pair-sum", constraints: []solver.Expr{
			solver.Eq(solver.Add(pack(roots[0]), pack(roots[1])), solver.Constant(uint64(uint32(v)), 32)),
		}})
	}
	return out
}

// bytewiseEq equates each used byte of the array with the matching
// little-endian byte of v.
func bytewiseEq(r *root, v int64) []solver.Expr {
	constraints := make([]solver.Expr, r.bytes)
	for i := 0; i < r.bytes; i++ {
		b := uint64(v>>(8*i)) & 0xff
		constraints[i] = solver.Eq(
			solver.Read(r.array, solver.Constant(uint64(i), 32)),
			solver.Constant(b, 8),
		)
	}
	return constraints
}

// pack builds the little-endian 32-bit packing of the array's used
// bytes: or-fold of zext(read(A,i)) << 8i.
func pack(r *root) solver.Expr {
	var acc solver.Expr
	for i := 0; i < r.bytes; i++ {
		term := solver.Expr(solver.ZExt(solver.Read(r.array, solver.Constant(uint64(i), 32)), 32))
		if i > 0 {
			term = solver.Shl(term, solver.Constant(uint64(8*i), 32))
		}
		if acc == nil {
			acc = term
		} else {
			acc = solver.Or(acc, term)
		}
	}
	return acc
}

package ir

// Dominator computation. Sets are computed with the classic iterative
// dataflow: dom(entry) = {entry}, dom(b) = {b} ∪ intersection of
// dom(p) over predecessors p. Function CFGs here are small enough that
// the set-based formulation beats carrying a dominator tree around.

// DomInfo holds the dominator sets of one function. Callers must run
// ComputeCFG before ComputeDominance and recompute after any edit that
// changes the control-flow graph (instruction insertion does not).
type DomInfo struct {
	doms map[*BasicBlock]map[*BasicBlock]bool
}

// ComputeDominance computes the dominator sets of f.
func ComputeDominance(f *Function) *DomInfo {
	info := &DomInfo{doms: make(map[*BasicBlock]map[*BasicBlock]bool, len(f.Blocks))}
	entry := f.Entry()
	if entry == nil {
		return info
	}

	all := make(map[*BasicBlock]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		all[b] = true
	}
	for _, b := range f.Blocks {
		if b == entry {
			info.doms[b] = map[*BasicBlock]bool{b: true}
		} else {
			info.doms[b] = copySet(all)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range f.Blocks {
			if b == entry {
				continue
			}
			next := intersectPreds(info, b, all)
			next[b] = true
			if !sameSet(next, info.doms[b]) {
				info.doms[b] = next
				changed = true
			}
		}
	}
	return info
}

// Dominates reports whether block a dominates block b.
func (d *DomInfo) Dominates(a, b *BasicBlock) bool {
	return d.doms[b][a]
}

// ValueDominates reports whether the definition of v dominates the
// insertion point just before block.Instructions[index]. Constants and
// parameters dominate everything.
func (d *DomInfo) ValueDominates(v *Value, block *BasicBlock, index int) bool {
	if v == nil {
		return false
	}
	if v.Kind != ValueTemp {
		return true
	}
	if v.Block == nil {
		return false
	}
	if v.Block == block {
		di := InstructionIndex(block, v.Def)
		return di >= 0 && di < index
	}
	return d.Dominates(v.Block, block)
}

// InstructionIndex returns inst's position within b, or -1. The
// terminator counts as position len(b.Instructions).
func InstructionIndex(b *BasicBlock, inst Instruction) int {
	if inst == nil {
		return -1
	}
	for i, in := range b.Instructions {
		if in == inst {
			return i
		}
	}
	if b.Terminator == inst {
		return len(b.Instructions)
	}
	return -1
}

func copySet(s map[*BasicBlock]bool) map[*BasicBlock]bool {
	out := make(map[*BasicBlock]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func intersectPreds(info *DomInfo, b *BasicBlock, all map[*BasicBlock]bool) map[*BasicBlock]bool {
	if len(b.Predecessors) == 0 {
		// Unreachable from the entry; keep the full set so the block never
		// loosens its successors' intersections.
		return copySet(all)
	}
	out := copySet(info.doms[b.Predecessors[0]])
	for _, p := range b.Predecessors[1:] {
		pd := info.doms[p]
		for k := range out {
			if !pd[k] {
				delete(out, k)
			}
		}
	}
	return out
}

func sameSet(a, b map[*BasicBlock]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

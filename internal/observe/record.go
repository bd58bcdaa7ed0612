package observe

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryBranch marks a function-entry observation. Entry records use the
// same line format as branch records, with this sentinel in the branch
// field; they distill under the bare "loc:<N>" site key.
const EntryBranch = -1

// Record is a single observation: one integer value seen for one
// variable at one side of one branch site.
type Record struct {
	Loc    int
	Branch int // 0, 1, or EntryBranch
	Var    string
	Val    int32
}

// SiteKey returns the site key this record distills under. Entry
// observations fold into the branch-less form.
func (r Record) SiteKey() string {
	if r.Branch == EntryBranch {
		return fmt.Sprintf("loc:%d", r.Loc)
	}
	return fmt.Sprintf("loc:%d:branch:%d", r.Loc, r.Branch)
}

// String renders the canonical line form, without the trailing newline.
func (r Record) String() string {
	return fmt.Sprintf("loc:%d:branch:%d\t%s:%d", r.Loc, r.Branch, r.Var, r.Val)
}

// ParseLine parses one observation log line (trailing newline optional).
func ParseLine(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")

	head, tail, ok := strings.Cut(line, "\t")
	if !ok {
		return Record{}, fmt.Errorf("observation line has no tab separator: %q", line)
	}

	rest, found := strings.CutPrefix(head, "loc:")
	if !found {
		return Record{}, fmt.Errorf("observation line has no loc prefix: %q", line)
	}
	locPart, branchPart, ok := strings.Cut(rest, ":branch:")
	if !ok {
		return Record{}, fmt.Errorf("observation line has no branch field: %q", line)
	}
	loc, err := strconv.Atoi(locPart)
	if err != nil || loc < 0 {
		return Record{}, fmt.Errorf("bad location %q in line %q", locPart, line)
	}
	branch, err := strconv.Atoi(branchPart)
	if err != nil || (branch != 0 && branch != 1 && branch != EntryBranch) {
		return Record{}, fmt.Errorf("bad branch %q in line %q", branchPart, line)
	}

	// Identifiers never contain a colon, but cut from the right anyway so a
	// hostile name cannot shift the value field.
	sep := strings.LastIndexByte(tail, ':')
	if sep <= 0 {
		return Record{}, fmt.Errorf("observation line has no value field: %q", line)
	}
	name := tail[:sep]
	val, err := strconv.ParseInt(tail[sep+1:], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("bad value %q in line %q", tail[sep+1:], line)
	}

	return Record{Loc: loc, Branch: branch, Var: name, Val: int32(val)}, nil
}

package distill

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"

	"vase/internal/observe"
	"vase/internal/valuemap"
)

var log = commonlog.GetLogger("vase.distill")

// Options bound the distilled catalogue: a value survives only when it
// was observed at least MinOccurrence times, and each (site, variable)
// keeps at most MaxValues survivors.
type Options struct {
	MinOccurrence int `json:"min-occurrence"`
	MaxValues     int `json:"max-values"`
}

// DefaultOptions are the recommended bounds for exploratory runs.
func DefaultOptions() Options {
	return Options{MinOccurrence: 3, MaxValues: 5}
}

// Distill reduces an observation log to the limited-value catalogue.
// Malformed lines are skipped with a warning; an empty input is a valid
// empty catalogue. The output is deterministic for a given input:
// values order by descending occurrence count, ties by ascending value.
func Distill(r io.Reader, opts Options) (*valuemap.Map, error) {
	counts := map[string]map[string]map[int64]int{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, err := observe.ParseLine(line)
		if err != nil {
			log.Warningf("skipping line %d: %s", lineno, err)
			continue
		}
		site := rec.SiteKey()
		vars, ok := counts[site]
		if !ok {
			vars = map[string]map[int64]int{}
			counts[site] = vars
		}
		vals, ok := vars[rec.Var]
		if !ok {
			vals = map[int64]int{}
			vars[rec.Var] = vals
		}
		vals[int64(rec.Val)]++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading observation log: %w", err)
	}

	sites := map[string]valuemap.Site{}
	for site, vars := range counts {
		entry := valuemap.Site{}
		for name, vals := range vars {
			props := limit(vals, opts)
			if len(props) > 0 {
				entry[name] = props
			}
		}
		if len(entry) > 0 {
			sites[site] = entry
		}
	}
	return valuemap.New(sites), nil
}

// limit applies the occurrence floor and cardinality cap to one
// (site, variable) count table.
func limit(vals map[int64]int, opts Options) []valuemap.ValueProperty {
	type counted struct {
		val   int64
		count int
	}
	survivors := make([]counted, 0, len(vals))
	for val, count := range vals {
		if count >= opts.MinOccurrence {
			survivors = append(survivors, counted{val, count})
		}
	}
	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].count != survivors[j].count {
			return survivors[i].count > survivors[j].count
		}
		return survivors[i].val < survivors[j].val
	})
	if opts.MaxValues >= 0 && len(survivors) > opts.MaxValues {
		survivors = survivors[:opts.MaxValues]
	}

	props := make([]valuemap.ValueProperty, len(survivors))
	for i, s := range survivors {
		props[i] = valuemap.ValueProperty{
			Type:  valuemap.TypeInt,
			Value: strconv.FormatInt(s.val, 10),
			Ops:   []string{},
		}
	}
	return props
}

// DistillFile distills the log at path. An unreadable log is a warning,
// not an error: it produces a valid empty catalogue. Logs named *.zst
// are transparently decompressed.
func DistillFile(path string, opts Options) (*valuemap.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Warningf("cannot read observation log %s: %s; emitting empty map", path, err)
		return valuemap.New(nil), nil
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening compressed log %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}
	return Distill(r, opts)
}

// WriteFile serializes the catalogue to path via a uniquely named
// sibling temp file and an atomic rename, so a crashed distiller never
// leaves a torn map behind.
func WriteFile(m *valuemap.Map, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("serializing limited-value map: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing limited-value map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing limited-value map: %w", err)
	}
	return nil
}

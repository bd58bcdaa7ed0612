package observe

import (
	"os"

	"github.com/tliron/commonlog"
)

// Environment variable naming the observation log; empty or unset means
// the relative default.
const (
	EnvLogPath     = "VASE_VALUE_LOG"
	DefaultLogPath = "vase_value_log.txt"
)

var log = commonlog.GetLogger("vase.observe")

// Sink is the append-only observation log writer. Appends are one write
// syscall on a file opened with O_APPEND, so records from forked child
// processes interleave without tearing. The sink holds no open file and
// no lock between calls; it cannot change the host program's threading
// behavior.
type Sink struct {
	path string
}

// NewSink resolves the log path from the environment.
func NewSink() *Sink {
	path := os.Getenv(EnvLogPath)
	if path == "" {
		path = DefaultLogPath
	}
	return &Sink{path: path}
}

// NewSinkAt writes to an explicit path.
func NewSinkAt(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the resolved log path.
func (s *Sink) Path() string {
	return s.path
}

// Append writes exactly one observation record. Failures are reported to
// the diagnostics log and swallowed: the host program must never abort
// because the sink is unavailable.
func (s *Sink) Append(r Record) {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Errorf("cannot open observation log %s: %s", s.path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write([]byte(r.String() + "\n")); err != nil {
		log.Errorf("cannot append to observation log %s: %s", s.path, err)
	}
}

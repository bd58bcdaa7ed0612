package valuemap

import (
	"os"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("vase.valuemap")

// State tracks the one-shot catalogue load.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	}
	return "invalid"
}

// Loader performs the process-wide one-shot catalogue load. The first
// Load call transitions unloaded -> loading -> ready (parse succeeded)
// or degraded (unset path, unreadable file, malformed document); later
// calls, from any goroutine, return the first outcome unchanged. In the
// degraded state the returned map is empty, never nil, so callers fall
// back to pass-through without a nil check.
type Loader struct {
	mu    sync.Mutex
	state State
	m     *Map
}

// Load resolves the catalogue for path. Only the first call's path
// matters; the load is serialized under the loader's lock.
func (l *Loader) Load(path string) (*Map, State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Ready || l.state == Degraded {
		return l.m, l.state
	}
	l.state = Loading

	l.m = New(nil)
	if path == "" {
		log.Warning("no limited-value map configured; constraint injection disabled")
		l.state = Degraded
		return l.m, l.state
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warningf("cannot read limited-value map %s: %s; constraint injection disabled", path, err)
		l.state = Degraded
		return l.m, l.state
	}
	m, err := Parse(data)
	if err != nil {
		log.Warningf("cannot parse limited-value map %s: %s; constraint injection disabled", path, err)
		l.state = Degraded
		return l.m, l.state
	}

	l.m = m
	l.state = Ready
	return l.m, l.state
}

// State reports the loader's current state without loading.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

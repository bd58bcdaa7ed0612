package inject

// Config is the wrapper's option surface. MapPath empty degrades the
// wrapper to pass-through.
type Config struct {
	// MapPath locates the limited-value map file.
	MapPath string `json:"vase-map"`
	// MaxArrays caps the number of root arrays considered per query.
	MaxArrays int `json:"vase-max-arrays"`
	// MaxBytes caps the little-endian bytes packed into an equality.
	MaxBytes int `json:"vase-max-bytes"`
	// MaxValues caps the distinct limited values attempted per site.
	MaxValues int `json:"vase-max-values"`
	// TryPairs enables the two-array sum candidate class.
	TryPairs bool `json:"vase-try-pairs"`
	// Verbose emits a diagnostic per accepted rewrite.
	Verbose bool `json:"vase-verbose"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxArrays: 4,
		MaxBytes:  4,
		MaxValues: 4,
		TryPairs:  true,
		Verbose:   true,
	}
}

package locate

import (
	"regexp"

	"vase/internal/solver"
)

// Site-key extraction. Queries carry no explicit site channel; the
// instrumentation's location tags surface in the printed expression
// form, so the extractor scans textual renderings for the first tag.

// Sentinel is returned when no constraint or goal carries a tag.
const Sentinel = "loc:0"

var sitePattern = regexp.MustCompile(`loc:(\d+)(?::branch:([01]))?`)

// SiteKey derives the site key for a query: the first tag match across
// the constraint renderings, then the goal. The branch suffix is kept
// when present.
func SiteKey(q solver.Query) string {
	for _, c := range q.Constraints {
		if key, ok := scan(c); ok {
			return key
		}
	}
	if q.Goal != nil {
		if key, ok := scan(q.Goal); ok {
			return key
		}
	}
	return Sentinel
}

func scan(e solver.Expr) (string, bool) {
	m := sitePattern.FindStringSubmatch(e.String())
	if m == nil {
		return "", false
	}
	if m[2] != "" {
		return "loc:" + m[1] + ":branch:" + m[2], true
	}
	return "loc:" + m[1], true
}

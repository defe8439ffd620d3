package matcher

import (
	"strings"

	"github.com/andres10976/certwatch/internal/model"
)

// Decision is the outcome of matching one certificate's domains.
// Pattern is empty unless Matched is true.
type Decision struct {
	Matched bool
	Pattern string
}

// PatternPtr returns the matched pattern for storage, or nil when the
// decision is not a match.
func (d Decision) PatternPtr() *string {
	if !d.Matched {
		return nil
	}
	p := d.Pattern
	return &p
}

// Decide checks domains against the include and exclude substring lists.
// Any excluded substring in any domain wins over every include pattern.
// Otherwise the first (domain, pattern) pair in iteration order is reported.
// Comparison is case-insensitive.
func Decide(domains []string, includes, excludes []string) Decision {
	if len(domains) == 0 {
		return Decision{}
	}

	lowered := make([]string, len(domains))
	for i, d := range domains {
		lowered[i] = strings.ToLower(d)
	}

	for _, d := range lowered {
		for _, ex := range excludes {
			if strings.Contains(d, strings.ToLower(ex)) {
				return Decision{}
			}
		}
	}

	for _, d := range lowered {
		for _, p := range includes {
			if strings.Contains(d, strings.ToLower(p)) {
				return Decision{Matched: true, Pattern: p}
			}
		}
	}

	return Decision{}
}

// DecideConfig is Decide with the lists taken from cfg.
func DecideConfig(domains []string, cfg model.MonitorConfig) Decision {
	return Decide(domains, cfg.IncludePatterns, cfg.ExcludePatterns)
}

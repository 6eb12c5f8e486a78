package aggregate

import (
	"sort"

	"github.com/farxc/vintage-cohorts/internal/vintage"
)

// Options lists, per registered attribute, the distinct non-empty values present in the
// cohorted records, sorted, plus the supported thresholds.
func (a *Aggregator) Options(records []vintage.LoanRecord) FilterOptions {
	names := a.registry.Names()
	sets := make(map[string]map[string]bool, len(names))
	for _, n := range names {
		sets[n] = make(map[string]bool)
	}

	for _, r := range records {
		if !r.HasCohort {
			continue
		}
		for _, n := range names {
			if v := r.Attribute(n); v != "" {
				sets[n][v] = true
			}
		}
	}

	out := FilterOptions{
		Attributes: make(map[string][]string, len(names)),
		Thresholds: append([]int(nil), vintage.SupportedThresholds...),
	}
	for n, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out.Attributes[n] = values
	}
	return out
}

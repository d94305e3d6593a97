// Package timeseries implements Validation's deterministic, no-LLM checks
// against an indicator's sample_values: separating real dates from symbolic
// placeholder tokens, detecting cumulative (YTD-style) series, and flagging
// magnitude inconsistencies. Nothing here calls an LLM provider.
package timeseries

import (
	"regexp"
	"sort"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// isoDate matches a full or partial ISO-8601 date: "2024", "2024-03", or
// "2024-03-01". Anything else (last10YearsAvg, last10YearsPeerAvg, ...) is
// symbolic.
var isoDate = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

// IsSymbolic reports whether date is a non-ISO placeholder token rather than
// a real observation date.
func IsSymbolic(date string) bool {
	return !isoDate.MatchString(date)
}

// SplitObservations partitions samples into dated (real ISO dates, sorted
// ascending) and symbolic (placeholder tokens such as last10YearsAvg,
// order preserved). Cumulative detection and magnitude checks only ever
// look at dated.
func SplitObservations(samples []models.Sample) (dated, symbolic []models.Sample) {
	for _, s := range samples {
		if IsSymbolic(s.Date) {
			symbolic = append(symbolic, s)
		} else {
			dated = append(dated, s)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date < dated[j].Date })
	return dated, symbolic
}

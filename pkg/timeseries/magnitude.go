package timeseries

import (
	"regexp"
	"sort"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// hyperinflationName exempts series whose name signals a historically
// hyperinflationary regime from the percentage/rate bound check.
var hyperinflationName = regexp.MustCompile(`(?i)hyper|zimbabwe|venezuela`)

// percentageLikeTypes are the indicator_type values the [-100, 100] bound
// check applies to.
var percentageLikeTypes = map[string]bool{
	"percentage": true,
	"rate":       true,
}

// monetaryStockThreshold is the series-median level, in raw currency units,
// above which an unscaled monetary stock is implausible (Zimbabwean
// hyperinflation aside, which is exempted above by name, not magnitude).
const monetaryStockThreshold = 1e14

// MagnitudeResult is the outcome of the magnitude-consistency check.
type MagnitudeResult struct {
	Suspicious bool
	Reasoning  string
}

// CheckMagnitude flags two shapes of magnitude inconsistency: a
// percentage/rate indicator with more than 5% of its values outside
// [-100, 100] (hyperinflation-named series exempt), and a currency-
// denominated stock whose median value exceeds 10^14 units with no scale
// hint (Indicator.Scale) to explain it.
func CheckMagnitude(indicatorType, name, scale string, isCurrencyDenominated bool, dated []models.Sample) MagnitudeResult {
	if len(dated) == 0 {
		return MagnitudeResult{}
	}

	if percentageLikeTypes[indicatorType] && !hyperinflationName.MatchString(name) {
		outOfBounds := 0
		for _, s := range dated {
			if s.Value < -100 || s.Value > 100 {
				outOfBounds++
			}
		}
		if float64(outOfBounds)/float64(len(dated)) > 0.05 {
			return MagnitudeResult{
				Suspicious: true,
				Reasoning:  "more than 5% of values fall outside [-100, 100] for a percentage/rate indicator",
			}
		}
	}

	if indicatorType == "stock" && isCurrencyDenominated && scale == "" {
		if median(dated) > monetaryStockThreshold {
			return MagnitudeResult{
				Suspicious: true,
				Reasoning:  "median value exceeds 1e14 units for an unscaled monetary stock",
			}
		}
	}

	return MagnitudeResult{}
}

func median(dated []models.Sample) float64 {
	values := make([]float64, len(dated))
	for i, s := range dated {
		values[i] = s.Value
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

package timeseries

import "github.com/codeready-toolchain/classify/pkg/models"

// CumulativeResult is the outcome of cumulative (YTD-style) detection.
type CumulativeResult struct {
	Analyzed    bool
	IsCumulative bool
	Confidence  float64
	Reasoning   string
}

// DetectCumulative looks for YTD-style resets: within a year, consecutive
// values mostly climb; crossing into a new year, the series drops back down
// near its minimum. dated must already be sorted ascending (SplitObservations
// guarantees this). Fewer than two intra-year steps means there isn't enough
// signal to judge, and Analyzed is false.
func DetectCumulative(dated []models.Sample) CumulativeResult {
	steps, resets := intraYearSteps(dated)
	if len(steps) < 2 {
		return CumulativeResult{Analyzed: false, Reasoning: "fewer than two intra-year steps"}
	}

	nonDecreasing := 0
	for _, step := range steps {
		if step >= 0 {
			nonDecreasing++
		}
	}
	fraction := float64(nonDecreasing) / float64(len(steps))
	confidence := clamp01(fraction - 0.5)

	resetsNearMinimum := resetsCloseToMinimum(dated, resets)
	isCumulative := fraction >= 0.9 && resetsNearMinimum

	reasoning := "intra-year steps mostly decreasing, no year-end reset pattern"
	if isCumulative {
		reasoning = "intra-year values mostly non-decreasing with resets near the series minimum at year boundaries"
	} else if fraction >= 0.9 {
		reasoning = "intra-year values mostly non-decreasing but no reset near the series minimum at year boundaries"
	}

	return CumulativeResult{
		Analyzed:     true,
		IsCumulative: isCumulative,
		Confidence:   confidence,
		Reasoning:    reasoning,
	}
}

// SuggestedTemporal returns the temporal aggregation DetectCumulative's
// result suggests, or "" when the evidence doesn't clear the threshold.
func (r CumulativeResult) SuggestedTemporal() models.TemporalAggregation {
	if r.IsCumulative && r.Confidence >= 0.7 {
		return models.TemporalPeriodCumulative
	}
	return ""
}

// intraYearSteps returns, in series order, the signed difference between
// each pair of consecutive samples that fall in the same year, and
// yearBoundary marks the index (into dated) of each sample that starts a
// new year after at least one prior sample.
func intraYearSteps(dated []models.Sample) (steps []float64, yearBoundary []int) {
	for i := 1; i < len(dated); i++ {
		prevYear, curYear := year(dated[i-1].Date), year(dated[i].Date)
		if prevYear == curYear && prevYear != "" {
			steps = append(steps, dated[i].Value-dated[i-1].Value)
		} else if prevYear != "" && curYear != "" {
			yearBoundary = append(yearBoundary, i)
		}
	}
	return steps, yearBoundary
}

// resetsCloseToMinimum reports whether, at each year boundary, the value the
// series resets to sits within 10% of the series' range above its minimum.
// With no boundaries (single-year series) there's nothing to reset, so the
// check passes vacuously.
func resetsCloseToMinimum(dated []models.Sample, boundaries []int) bool {
	if len(boundaries) == 0 {
		return true
	}
	min, max := seriesRange(dated)
	tolerance := (max - min) * 0.1
	if tolerance == 0 {
		tolerance = 1e-9
	}
	for _, idx := range boundaries {
		if dated[idx].Value-min > tolerance {
			return false
		}
	}
	return true
}

func seriesRange(dated []models.Sample) (min, max float64) {
	if len(dated) == 0 {
		return 0, 0
	}
	min, max = dated[0].Value, dated[0].Value
	for _, s := range dated[1:] {
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
	}
	return min, max
}

func year(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package transform

import "math"

// rollingMean returns the trailing mean over the last window values, ending
// at each position. Missing (NaN) values are ignored; a position whose window
// holds fewer than minPeriods present values, or none at all, is NaN.
func rollingMean(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(sum float64, n int) float64 {
		return sum / float64(n)
	})
}

// rollingSum returns the trailing sum with the same window rules as
// rollingMean.
func rollingSum(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(sum float64, _ int) float64 {
		return sum
	})
}

// rolling sums each window from scratch so that a value is a function of its
// own window only and does not accumulate rounding drift along the series.
func rolling(values []float64, window, minPeriods int, agg func(sum float64, n int) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := max(i-window+1, 0)
		sum, n := 0.0, 0
		for _, v := range values[lo : i+1] {
			if !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 || n < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(sum, n)
	}
	return out
}

// shift moves values n positions later, filling the head with NaN.
func shift(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if j := i - n; j >= 0 {
			out[i] = values[j]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

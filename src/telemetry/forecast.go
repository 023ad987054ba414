package telemetry

// forecastWindow is how many trailing points feed the regression.
const forecastWindow = 5

// forecastSteps is how far ahead each trend projects.
const forecastSteps = 3

// olsForecast extrapolates a metric series by ordinary least squares over
// the point index. For a series v[0..n-1] it fits
//
//	slope     = (n*Σ(i*v) - Σi*Σv) / (n*Σi² - (Σi)²)
//	intercept = (Σv - slope*Σi) / n
//
// and projects value(steps) = intercept + slope*(n-1+steps).
func olsForecast(series []float64, steps int) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return series[0]
	}

	var sumI, sumV, sumIV, sumII float64
	for i, v := range series {
		fi := float64(i)
		sumI += fi
		sumV += v
		sumIV += fi * v
		sumII += fi * fi
	}

	fn := float64(n)
	denom := fn*sumII - sumI*sumI
	if denom == 0 {
		return series[n-1]
	}
	slope := (fn*sumIV - sumI*sumV) / denom
	intercept := (sumV - slope*sumI) / fn

	return intercept + slope*(fn-1+float64(steps))
}

// forecastSeries projects the trailing forecastWindow points of a series
// for 1..steps steps ahead.
func forecastSeries(series []float64, steps int) []float64 {
	if len(series) > forecastWindow {
		series = series[len(series)-forecastWindow:]
	}
	out := make([]float64, steps)
	for s := 1; s <= steps; s++ {
		out[s-1] = olsForecast(series, s)
	}
	return out
}

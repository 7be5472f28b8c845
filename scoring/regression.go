/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Authors:
 *	- Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package scoring

import (
	"math"
	"sort"
)

// fitResult holds the coefficients of a (weighted) least squares line fit.
type fitResult struct {
	slope     float64
	intercept float64
	seSlope   float64
	tValue    float64
}

// linearFit performs a weighted least squares fit of y against x with
// weights w. The slope standard error is derived from the weighted residual
// variance; with only two points there are no residual degrees of freedom,
// so the standard error (and t statistic) are NaN.
func linearFit(x, y, w []float64) fitResult {
	var sw, sx, sy, sxx, sxy float64

	for i := range x {
		sw += w[i]
		sx += w[i] * x[i]
		sy += w[i] * y[i]
		sxx += w[i] * x[i] * x[i]
		sxy += w[i] * x[i] * y[i]
	}

	delta := sw*sxx - sx*sx
	slope := (sw*sxy - sx*sy) / delta
	intercept := (sy*sxx - sx*sxy) / delta

	df := float64(len(x) - 2)
	if df <= 0 {
		return fitResult{slope: slope, intercept: intercept,
			seSlope: math.NaN(), tValue: math.NaN()}
	}

	var wrss float64

	for i := range x {
		resid := y[i] - (intercept + slope*x[i])
		wrss += w[i] * resid * resid
	}

	seSlope := math.Sqrt(wrss / df * sw / delta)

	return fitResult{slope: slope, intercept: intercept,
		seSlope: seSlope, tValue: slope / seSlope}
}

// percentileOfScore returns, for each value, the percentage of values less
// than or equal to it, with NaN values given a NaN percentile.
func percentileOfScore(values []float64) []float64 {
	valid := make([]float64, 0, len(values))

	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	sort.Float64s(valid)

	pctiles := make([]float64, len(values))

	for i, v := range values {
		if math.IsNaN(v) || len(valid) == 0 {
			pctiles[i] = math.NaN()

			continue
		}

		atOrBelow := sort.SearchFloat64s(valid, v)
		for atOrBelow < len(valid) && valid[atOrBelow] <= v {
			atOrBelow++
		}

		pctiles[i] = 100 * float64(atOrBelow) / float64(len(valid))
	}

	return pctiles
}

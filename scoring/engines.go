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
	"context"
	"math"

	"github.com/wtsi-hgi/mavescore/store"
)

const (
	engineAuthor  = "Genome Research Ltd."
	engineVersion = "1.0"

	scoresTable = "scores"
)

// ratiosEngine scores each element as the log ratio of its normalized count
// at the last timepoint relative to timepoint 0, with a standard error from
// Poisson count-variance propagation.
type ratiosEngine struct {
	opts Options
}

func (e *ratiosEngine) Name() string         { return "Ratios" }
func (e *ratiosEngine) Author() string       { return engineAuthor }
func (e *ratiosEngine) Version() string      { return engineVersion }
func (e *ratiosEngine) ProducesScores() bool { return true }

func (e *ratiosEngine) Score(ctx context.Context, st *store.Scoped,
	labels []string, timepoints []int) error {
	for _, label := range labels {
		counts, shared, err := loadCounts(ctx, st, label, labels, e.opts)
		if err != nil {
			return err
		}

		first, last := 0, len(timepoints)-1
		scores := store.NewTable("score", "SE", "logratio", "variance")

		for _, r := range counts.Rows {
			if CheckSeries(r.Values) != nil {
				continue
			}

			c0 := r.Values[first] + pseudocount
			cn := r.Values[last] + pseudocount

			logratio := (math.Log(cn) - math.Log(shared[last])) -
				(math.Log(c0) - math.Log(shared[first]))
			variance := 1/c0 + 1/cn + 1/shared[first] + 1/shared[last]

			scores.Add(r.Element, logratio, math.Sqrt(variance), logratio, variance)
		}

		if err := st.Put(ctx, mainTable(label, scoresTable), scores); err != nil {
			return err
		}
	}

	return nil
}

// simpleEngine scores each element as the log2 ratio of its count frequency
// at the last timepoint relative to timepoint 0. It produces no standard
// errors; this is the legacy normalization.
type simpleEngine struct {
	opts Options
}

func (e *simpleEngine) Name() string         { return "Ratios (legacy)" }
func (e *simpleEngine) Author() string       { return engineAuthor }
func (e *simpleEngine) Version() string      { return engineVersion }
func (e *simpleEngine) ProducesScores() bool { return true }

func (e *simpleEngine) Score(ctx context.Context, st *store.Scoped,
	labels []string, timepoints []int) error {
	for _, label := range labels {
		counts, err := st.Get(ctx, mainTable(label, countsTable))
		if err != nil {
			return err
		}

		first, last := 0, len(timepoints)-1
		sums := make([]float64, len(timepoints))

		for _, r := range counts.Rows {
			for i, v := range r.Values {
				if !math.IsNaN(v) {
					sums[i] += v
				}
			}
		}

		scores := store.NewTable("score", "SE", "ratio")

		for _, r := range counts.Rows {
			if CheckSeries(r.Values) != nil {
				continue
			}

			ratio := (r.Values[last] / sums[last]) / (r.Values[first] / sums[first])
			scores.Add(r.Element, math.Log2(ratio), math.NaN(), ratio)
		}

		if err := st.Put(ctx, mainTable(label, scoresTable), scores); err != nil {
			return err
		}
	}

	return nil
}

// regressionEngine fits a least squares line to each element's log
// normalized counts against rescaled timepoint index; the score is the slope
// and the standard error is the regression standard error of the slope. When
// weighted, per-timepoint weights are inverse count-variance estimates.
type regressionEngine struct {
	opts     Options
	weighted bool
}

func (e *regressionEngine) Name() string {
	if e.weighted {
		return "Weighted least squares"
	}

	return "Ordinary least squares"
}

func (e *regressionEngine) Author() string       { return engineAuthor }
func (e *regressionEngine) Version() string      { return engineVersion }
func (e *regressionEngine) ProducesScores() bool { return true }

func (e *regressionEngine) Score(ctx context.Context, st *store.Scoped,
	labels []string, timepoints []int) error {
	for _, label := range labels {
		if err := e.scoreLabel(ctx, st, label, labels, timepoints); err != nil {
			return err
		}
	}

	return nil
}

func (e *regressionEngine) scoreLabel(ctx context.Context, st *store.Scoped,
	label string, labels []string, timepoints []int) error {
	counts, shared, err := loadCounts(ctx, st, label, labels, e.opts)
	if err != nil {
		return err
	}

	maxTP := float64(timepoints[len(timepoints)-1])
	xs := make([]float64, len(timepoints))

	for i, tp := range timepoints {
		xs[i] = float64(tp) / maxTP
	}

	scores := store.NewTable("score", "SE", "SE_pctile", "slope", "intercept",
		"SE_slope", "t")

	for _, r := range counts.Rows {
		if CheckSeries(r.Values) != nil {
			continue
		}

		fit := e.fitRow(r.Values, shared, xs)
		scores.Add(r.Element, fit.slope, fit.seSlope, math.NaN(),
			fit.slope, fit.intercept, fit.seSlope, fit.tValue)
	}

	fillSEPercentiles(scores)

	return st.Put(ctx, mainTable(label, scoresTable), scores)
}

func (e *regressionEngine) fitRow(values, shared, xs []float64) fitResult {
	n := len(values)
	ys := make([]float64, n)
	ws := make([]float64, n)

	for i := 0; i < n; i++ {
		c := values[i] + pseudocount
		ys[i] = math.Log(c) - math.Log(shared[i])

		if e.weighted {
			ws[i] = 1 / (1/c + 1/shared[i])
		} else {
			ws[i] = 1
		}
	}

	return linearFit(xs, ys, ws)
}

// fillSEPercentiles replaces the SE_pctile column with the percentile of
// each element's standard error among all scored elements.
func fillSEPercentiles(scores *store.Table) {
	seCol, _ := scores.Column("SE")
	pctCol, _ := scores.Column("SE_pctile")

	ses := make([]float64, len(scores.Rows))
	for i, r := range scores.Rows {
		ses[i] = r.Values[seCol]
	}

	for i, pct := range percentileOfScore(ses) {
		scores.Rows[i].Values[pctCol] = pct
	}
}

// countsEngine performs no scoring; counts are passed through for manual
// downstream analysis, so no scores table is expected afterwards.
type countsEngine struct{}

func (e *countsEngine) Name() string         { return "Counts only" }
func (e *countsEngine) Author() string       { return engineAuthor }
func (e *countsEngine) Version() string      { return engineVersion }
func (e *countsEngine) ProducesScores() bool { return false }

func (e *countsEngine) Score(_ context.Context, _ *store.Scoped,
	_ []string, _ []int) error {
	return nil
}

// loadCounts fetches the label's counts table and the normalization terms
// for each of its columns.
func loadCounts(ctx context.Context, st *store.Scoped, label string,
	labels []string, opts Options) (*store.Table, []float64, error) {
	counts, err := st.Get(ctx, mainTable(label, countsTable))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, ErrNoCounts
		}

		return nil, nil, err
	}

	shared, err := sharedCounts(ctx, st, label, labels, opts, len(counts.Columns))
	if err != nil {
		return nil, nil, err
	}

	return counts, shared, nil
}

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

package experiment

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/wtsi-hgi/mavescore/selection"
	"github.com/wtsi-hgi/mavescore/store"
)

const (
	mainGroup           = "main"
	scoresTable         = "scores"
	scoresSharedTable   = "scores_shared_full"
	scoresExcludedTable = "scores_excluded"
	scoreColumn         = "score"
	seColumn            = "SE"
	nColumn             = "n"
)

// replicateScore is one selection's score and standard error for an element.
type replicateScore struct {
	score, se float64
}

// Run runs every selection of every condition concurrently under base, then
// combines each condition's replicate scores per label. A failed selection
// aborts only its own subtree; its siblings still run and combine. The first
// selection failure is returned after all combining has finished.
func (e *Experiment) Run(ctx context.Context, st *store.Store, base string) error {
	errs := e.runSelections(ctx, st, base)

	var firstErr error

	for _, cond := range e.conditions {
		var succeeded []*selection.Selection

		for _, sel := range cond.Selections {
			if err := errs[sel]; err != nil {
				if firstErr == nil {
					firstErr = err
				}

				continue
			}

			if sel.ProducesScores() {
				succeeded = append(succeeded, sel)
			}
		}

		if len(succeeded) == 0 {
			e.logger.Warn("no scored selections to combine", "condition", cond.Name)

			continue
		}

		condBase := base + "/" + cond.Name

		if err := e.combineCondition(ctx, st, condBase, succeeded); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// runSelections fans every selection out into its own goroutine and waits for
// all of them.
func (e *Experiment) runSelections(ctx context.Context, st *store.Store,
	base string) map[*selection.Selection]error {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	errs := make(map[*selection.Selection]error)

	for _, cond := range e.conditions {
		for _, sel := range cond.Selections {
			wg.Add(1)

			go func(condName string, sel *selection.Selection) {
				defer wg.Done()

				err := sel.Run(ctx, st, base+"/"+condName+"/"+sel.Name())

				mu.Lock()
				errs[sel] = err
				mu.Unlock()
			}(cond.Name, sel)
		}
	}

	wg.Wait()

	return errs
}

// combineCondition writes, for each label shared by the condition's
// successful selections, the per-selection score matrix, the combined scores
// of elements scored in enough selections, and the matrix rows of the
// excluded elements.
func (e *Experiment) combineCondition(ctx context.Context, st *store.Store,
	condBase string, sels []*selection.Selection) error {
	for _, label := range sharedLabels(sels) {
		byElement, err := loadScores(ctx, st, condBase, label, sels)
		if err != nil {
			return err
		}

		shared, excluded := e.buildMatrices(sels, byElement)
		combined := e.combineScores(byElement)

		path := condBase + "/" + mainGroup + "/" + label + "/"

		for table, t := range map[string]*store.Table{
			scoresSharedTable:   shared,
			scoresTable:         combined,
			scoresExcludedTable: excluded,
		} {
			if err := st.Put(ctx, path+table, t); err != nil {
				return err
			}
		}
	}

	return nil
}

// sharedLabels returns the labels every given selection scored, in reporting
// order.
func sharedLabels(sels []*selection.Selection) []string {
	counts := make(map[string]int)

	for _, sel := range sels {
		for _, label := range sel.Labels() {
			counts[label]++
		}
	}

	var shared []string

	for _, label := range sels[0].Labels() {
		if counts[label] == len(sels) {
			shared = append(shared, label)
		}
	}

	return shared
}

// loadScores reads each selection's scores table for the label and gathers,
// per element, the replicate scores in selection order. Missing replicates
// are recorded as NaN.
func loadScores(ctx context.Context, st *store.Store, condBase, label string,
	sels []*selection.Selection) (map[string][]replicateScore, error) {
	byElement := make(map[string][]replicateScore)

	for i, sel := range sels {
		path := condBase + "/" + sel.Name() + "/" + mainGroup + "/" + label + "/" + scoresTable

		t, err := st.Get(ctx, path)
		if err != nil {
			return nil, err
		}

		scoreCol, _ := t.Column(scoreColumn)
		seCol, _ := t.Column(seColumn)

		for _, r := range t.Rows {
			scores, ok := byElement[r.Element]
			if !ok {
				scores = missingReplicates(len(sels))
				byElement[r.Element] = scores
			}

			scores[i] = replicateScore{score: r.Values[scoreCol], se: r.Values[seCol]}
		}
	}

	return byElement, nil
}

func missingReplicates(n int) []replicateScore {
	scores := make([]replicateScore, n)

	for i := range scores {
		scores[i] = replicateScore{score: math.NaN(), se: math.NaN()}
	}

	return scores
}

// buildMatrices renders the per-selection score matrix over all elements,
// and separately the rows of elements scored in too few selections to be
// combined.
func (e *Experiment) buildMatrices(sels []*selection.Selection,
	byElement map[string][]replicateScore) (shared, excluded *store.Table) {
	columns := make([]string, 0, 2*len(sels))

	for _, sel := range sels {
		columns = append(columns, scoreColumn+"_"+sel.Name(), seColumn+"_"+sel.Name())
	}

	shared = store.NewTable(columns...)
	excluded = store.NewTable(columns...)

	for _, element := range sortedElements(byElement) {
		scores := byElement[element]
		values := make([]float64, 0, len(columns))

		for _, rs := range scores {
			values = append(values, rs.score, rs.se)
		}

		shared.Add(element, values...)

		if scoredReplicates(scores) < e.opts.MinSelections {
			excluded.Add(element, values...)
		}
	}

	return shared, excluded
}

// combineScores reduces each sufficiently replicated element's scores to one
// score and standard error using the configured combiner.
func (e *Experiment) combineScores(byElement map[string][]replicateScore) *store.Table {
	combined := store.NewTable(scoreColumn, seColumn, nColumn)

	for _, element := range sortedElements(byElement) {
		scores := byElement[element]
		n := scoredReplicates(scores)

		if n < e.opts.MinSelections {
			continue
		}

		score, se := e.combine(scores)
		combined.Add(element, score, se, float64(n))
	}

	return combined
}

func (e *Experiment) combine(scores []replicateScore) (float64, float64) {
	if e.opts.Combiner == CombineInvVar {
		if score, se, ok := invVarCombine(scores); ok {
			return score, se
		}
	}

	return meanCombine(scores)
}

// invVarCombine is the inverse-variance weighted mean and its standard
// error. It only applies when every scored replicate has a finite, positive
// standard error.
func invVarCombine(scores []replicateScore) (float64, float64, bool) {
	var sumW, sumWS float64

	for _, rs := range scores {
		if math.IsNaN(rs.score) {
			continue
		}

		if math.IsNaN(rs.se) || rs.se <= 0 {
			return 0, 0, false
		}

		w := 1 / (rs.se * rs.se)
		sumW += w
		sumWS += w * rs.score
	}

	return sumWS / sumW, math.Sqrt(1 / sumW), true
}

// meanCombine is the unweighted mean with the standard error of the mean,
// which needs at least two scored replicates to be defined.
func meanCombine(scores []replicateScore) (float64, float64) {
	var (
		sum float64
		n   int
	)

	for _, rs := range scores {
		if !math.IsNaN(rs.score) {
			sum += rs.score
			n++
		}
	}

	mean := sum / float64(n)
	if n < 2 {
		return mean, math.NaN()
	}

	var ss float64

	for _, rs := range scores {
		if !math.IsNaN(rs.score) {
			d := rs.score - mean
			ss += d * d
		}
	}

	sd := math.Sqrt(ss / float64(n-1))

	return mean, sd / math.Sqrt(float64(n))
}

func scoredReplicates(scores []replicateScore) int {
	n := 0

	for _, rs := range scores {
		if !math.IsNaN(rs.score) {
			n++
		}
	}

	return n
}

func sortedElements(byElement map[string][]replicateScore) []string {
	elements := make([]string, 0, len(byElement))

	for element := range byElement {
		elements = append(elements, element)
	}

	sort.Strings(elements)

	return elements
}

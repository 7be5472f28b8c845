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

package selection

import (
	"context"
	"math"
	"sync"

	"github.com/wtsi-hgi/mavescore/scoring"
	"github.com/wtsi-hgi/mavescore/seqlib"
	"github.com/wtsi-hgi/mavescore/store"
)

const (
	mainGroup             = "main"
	rawGroup              = "raw"
	countsTable           = "counts"
	countsUnfilteredTable = "counts_unfiltered"
	barcodeMapTable       = "barcodemap"
	scoresTable           = "scores"
	targetColumn          = "target"
)

// Run counts every library concurrently, combines their counts into
// per-label count-over-time tables under base/main, scores them with the
// configured engine, and verifies the scores tables exist. The selection's
// State reflects progress and ends at StateScored or StateFailed.
func (s *Selection) Run(ctx context.Context, st *store.Store, base string) error {
	if s.state != StateUninitialized {
		return ErrWrongState
	}

	err := s.run(ctx, st, base)
	if err != nil {
		s.state = StateFailed
		s.logger.Error("selection failed", "err", err)

		return err
	}

	s.state = StateScored

	return nil
}

func (s *Selection) run(ctx context.Context, st *store.Store, base string) error {
	s.state = StateCounting

	if err := s.countLibraries(ctx, st, base); err != nil {
		return err
	}

	s.state = StateCombining

	if err := s.combine(ctx, st, base); err != nil {
		return err
	}

	if err := s.mergeBarcodeMaps(ctx, st, base); err != nil {
		return err
	}

	s.state = StateScoring

	return s.score(ctx, st, base)
}

// countLibraries runs every library's counting pass concurrently, each
// writing under its own subtree of base. The first error wins; the rest of
// the libraries still run to completion.
func (s *Selection) countLibraries(ctx context.Context, st *store.Store, base string) error {
	var wg sync.WaitGroup

	errs := make([]error, len(s.libs))

	for i, lib := range s.libs {
		wg.Add(1)

		go func(i int, lib *seqlib.SeqLib) {
			defer wg.Done()

			errs[i] = lib.Count(ctx, st, base+"/"+lib.Name())
		}(i, lib)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.logger.Error("library counting failed", "library", s.libs[i].Name(), "err", err)

			return err
		}

		stats := s.libs[i].Stats()

		s.logger.Info("library counted", "library", s.libs[i].Name(),
			"reads", stats.TotalReads, "accepted", stats.Accepted())
	}

	return nil
}

// combine sums, for each shared label and timepoint, the filtered counts of
// all libraries at that timepoint, then writes two tables under base/main:
// counts_unfiltered holds the union of elements with NaN where an element was
// not seen at a timepoint, and counts holds only the complete cases.
func (s *Selection) combine(ctx context.Context, st *store.Store, base string) error {
	for _, label := range s.labels {
		byTimepoint, err := s.collectCounts(ctx, st, base, label)
		if err != nil {
			return err
		}

		unfiltered, complete := buildTimeSeries(s.timepoints, byTimepoint)

		path := base + "/" + mainGroup + "/" + label + "/"

		if err := st.Put(ctx, path+countsUnfilteredTable, unfiltered); err != nil {
			return err
		}

		if err := st.Put(ctx, path+countsTable, complete); err != nil {
			return err
		}
	}

	return nil
}

// collectCounts loads each library's filtered counts for the label and sums
// them per timepoint per element.
func (s *Selection) collectCounts(ctx context.Context, st *store.Store, base,
	label string) (map[int]map[string]float64, error) {
	byTimepoint := make(map[int]map[string]float64)

	for _, tp := range s.timepoints {
		byTimepoint[tp] = make(map[string]float64)
	}

	for _, lib := range s.libs {
		counts := byTimepoint[lib.Timepoint()]
		path := base + "/" + lib.Name() + "/" + mainGroup + "/" + label + "/" + countsTable

		err := st.Select(ctx, path, nil, func(r store.Row) error {
			counts[r.Element] += r.Values[0]

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return byTimepoint, nil
}

// buildTimeSeries turns per-timepoint count maps into the unfiltered table
// over the union of elements and the complete-cases table over elements seen
// at every timepoint.
func buildTimeSeries(timepoints []int,
	byTimepoint map[int]map[string]float64) (unfiltered, complete *store.Table) {
	columns := make([]string, len(timepoints))
	for i, tp := range timepoints {
		columns[i] = scoring.TimepointColumn(tp)
	}

	unfiltered = store.NewTable(columns...)
	complete = store.NewTable(columns...)

	elements := make(map[string]bool)

	for _, counts := range byTimepoint {
		for element := range counts {
			elements[element] = true
		}
	}

	for element := range elements {
		values := make([]float64, len(timepoints))
		isComplete := true

		for i, tp := range timepoints {
			if n, ok := byTimepoint[tp][element]; ok {
				values[i] = n
			} else {
				values[i] = math.NaN()
				isComplete = false
			}
		}

		unfiltered.Add(element, values...)

		if isComplete {
			complete.Add(element, values...)
		}
	}

	unfiltered.Sort()
	complete.Sort()

	return unfiltered, complete
}

// mergeBarcodeMaps unions the observed barcode maps of all mapped libraries
// into base/main/barcodemap. Libraries in one selection share a map file, so
// overlapping entries agree.
func (s *Selection) mergeBarcodeMaps(ctx context.Context, st *store.Store, base string) error {
	merged := store.NewTextTable(targetColumn)
	seen := make(map[string]bool)

	for _, lib := range s.libs {
		if lib.BarcodeMap() == nil {
			continue
		}

		path := base + "/" + lib.Name() + "/" + rawGroup + "/" + barcodeMapTable

		err := st.Select(ctx, path, nil, func(r store.Row) error {
			if !seen[r.Element] {
				seen[r.Element] = true

				merged.AddText(r.Element, r.Text)
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	if len(seen) == 0 {
		return nil
	}

	merged.Sort()

	return st.Put(ctx, base+"/"+mainGroup+"/"+barcodeMapTable, merged)
}

// score runs the configured engine against the selection's subtree and then
// verifies it wrote a scores table for every label, unless the engine
// declares it produces none.
func (s *Selection) score(ctx context.Context, st *store.Store, base string) error {
	engine, err := scoring.New(s.method, s.opts)
	if err != nil {
		return err
	}

	s.logger.Info("scoring", "method", engine.Name(), "version", engine.Version())

	if err := engine.Score(ctx, st.Scoped(base), s.labels, s.timepoints); err != nil {
		return err
	}

	if !engine.ProducesScores() {
		return nil
	}

	for _, label := range s.labels {
		ok, err := st.Has(ctx, base+"/"+mainGroup+"/"+label+"/"+scoresTable)
		if err != nil {
			return err
		}

		if !ok {
			return ErrScoresMissing
		}
	}

	return nil
}

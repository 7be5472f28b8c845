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
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/mavescore/scoring"
	"github.com/wtsi-hgi/mavescore/selection"
	"github.com/wtsi-hgi/mavescore/seqlib"
	"github.com/wtsi-hgi/mavescore/sequence"
	"github.com/wtsi-hgi/mavescore/store"
	"github.com/wtsi-hgi/mavescore/variant"
)

func testLib(t *testing.T, name string, timepoint int, seqs ...string) *seqlib.SeqLib {
	t.Helper()

	wt, err := sequence.NewWildType("ATGGGA", 0, true)
	if err != nil {
		t.Fatal(err)
	}

	content := ""
	for _, seq := range seqs {
		content += "@r\n" + seq + "\n+\nIIIIII\n"
	}

	path := filepath.Join(t.TempDir(), name+".fastq")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	lib, err := seqlib.New(seqlib.Options{
		Name: name, Type: seqlib.TypeBasic, Timepoint: timepoint,
		Reads: path, WildType: wt, MaxMutations: 2,
		Filter: sequence.NewFilter(),
	})
	if err != nil {
		t.Fatal(err)
	}

	return lib
}

func testSelection(t *testing.T, name string) *selection.Selection {
	t.Helper()

	t0 := testLib(t, name+"t0", 0, "ATGGGA", "ATGGGA", "ATCGGA", "ATCGGA")
	t8 := testLib(t, name+"t8", 8, "ATGGGA", "ATGGGA", "ATCGGA")

	sel, err := selection.New(name, []*seqlib.SeqLib{t0, t8}, "ratios",
		scoring.Options{Normalization: scoring.NormWildType})
	if err != nil {
		t.Fatal(err)
	}

	return sel
}

func TestExperimentValidation(t *testing.T) {
	Convey("New rejects malformed experiment trees", t, func() {
		sel := testSelection(t, "sel1")
		opts := Options{Name: "exp", MinSelections: 1, Combiner: CombineInvVar}

		Convey("with no conditions", func() {
			_, err := New(opts, nil)
			So(err, ShouldEqual, ErrNoConditions)
		})

		Convey("with an empty condition", func() {
			_, err := New(opts, []*Condition{{Name: "cond1"}})
			So(err, ShouldEqual, ErrNoSelections)
		})

		Convey("with duplicate condition names", func() {
			sel2 := testSelection(t, "sel2")
			_, err := New(opts, []*Condition{
				{Name: "cond1", Selections: []*selection.Selection{sel}},
				{Name: "cond1", Selections: []*selection.Selection{sel2}},
			})
			So(err, ShouldEqual, ErrDuplicateCondition)
		})

		Convey("with duplicate selection names in a condition", func() {
			sel2 := testSelection(t, "sel1")
			_, err := New(opts, []*Condition{
				{Name: "cond1", Selections: []*selection.Selection{sel, sel2}},
			})
			So(err, ShouldEqual, ErrDuplicateSelection)
		})

		Convey("with reserved names", func() {
			_, err := New(opts, []*Condition{
				{Name: "raw", Selections: []*selection.Selection{sel}},
			})
			So(err, ShouldEqual, ErrReservedName)
		})

		Convey("with a bad minimum selections", func() {
			bad := opts
			bad.MinSelections = 0
			_, err := New(bad, []*Condition{
				{Name: "cond1", Selections: []*selection.Selection{sel}},
			})
			So(err, ShouldEqual, ErrBadMinSelections)
		})

		Convey("with an unknown combiner", func() {
			bad := opts
			bad.Combiner = "nonesuch"
			_, err := New(bad, []*Condition{
				{Name: "cond1", Selections: []*selection.Selection{sel}},
			})
			So(err, ShouldEqual, ErrUnknownCombiner)
		})
	})
}

func TestCombiners(t *testing.T) {
	Convey("The inverse variance combiner weights by squared SE", t, func() {
		score, se, ok := invVarCombine([]replicateScore{
			{score: 1, se: 1},
			{score: 3, se: 1},
		})
		So(ok, ShouldBeTrue)
		So(score, ShouldAlmostEqual, 2)
		So(se, ShouldAlmostEqual, 1/math.Sqrt2)

		Convey("favouring precise replicates", func() {
			score, _, ok := invVarCombine([]replicateScore{
				{score: 1, se: 0.1},
				{score: 3, se: 10},
			})
			So(ok, ShouldBeTrue)
			So(score, ShouldAlmostEqual, 1, 0.01)
		})

		Convey("and declining when a replicate has no SE", func() {
			_, _, ok := invVarCombine([]replicateScore{
				{score: 1, se: math.NaN()},
				{score: 3, se: 1},
			})
			So(ok, ShouldBeFalse)
		})
	})

	Convey("The mean combiner uses the standard error of the mean", t, func() {
		score, se := meanCombine([]replicateScore{
			{score: 1, se: math.NaN()},
			{score: 3, se: math.NaN()},
		})
		So(score, ShouldAlmostEqual, 2)
		So(se, ShouldAlmostEqual, math.Sqrt2/math.Sqrt2)

		Convey("and has no SE for a single replicate", func() {
			score, se := meanCombine([]replicateScore{{score: 5, se: math.NaN()}})
			So(score, ShouldAlmostEqual, 5)
			So(math.IsNaN(se), ShouldBeTrue)
		})
	})
}

func TestExperimentRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given an experiment with replicate selections", t, func() {
		sel1 := testSelection(t, "sel1")
		sel2 := testSelection(t, "sel2")

		exp, err := New(Options{Name: "exp", MinSelections: 2, Combiner: CombineInvVar},
			[]*Condition{{Name: "cond1", Selections: []*selection.Selection{sel1, sel2}}})
		So(err, ShouldBeNil)
		So(exp.Name(), ShouldEqual, "exp")

		s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
		So(err, ShouldBeNil)

		defer s.Close()

		Convey("Run scores both selections and combines their scores", func() {
			So(exp.Run(ctx, s, "exp"), ShouldBeNil)
			So(sel1.State(), ShouldEqual, selection.StateScored)
			So(sel2.State(), ShouldEqual, selection.StateScored)

			shared, err := s.Get(ctx, "exp/cond1/main/variants/scores_shared_full")
			So(err, ShouldBeNil)
			So(shared.Columns, ShouldResemble,
				[]string{"score_sel1", "SE_sel1", "score_sel2", "SE_sel2"})

			combined, err := s.Get(ctx, "exp/cond1/main/variants/scores")
			So(err, ShouldBeNil)
			So(combined.Columns, ShouldResemble, []string{"score", "SE", "n"})

			row, ok := combined.Get(variant.WildTypeKey)
			So(ok, ShouldBeTrue)
			So(row.Values[0], ShouldAlmostEqual, 0)
			So(row.Values[2], ShouldEqual, 2)

			Convey("with identical replicates shrinking the combined SE", func() {
				sharedRow, ok := shared.Get(variant.WildTypeKey)
				So(ok, ShouldBeTrue)
				So(row.Values[1], ShouldAlmostEqual, sharedRow.Values[1]/math.Sqrt2)
			})

			Convey("and an excluded table for under-replicated elements", func() {
				excluded, err := s.Get(ctx, "exp/cond1/main/variants/scores_excluded")
				So(err, ShouldBeNil)
				So(excluded.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("A failing selection does not stop its siblings", t, func() {
		good := testSelection(t, "good")

		wt, err := sequence.NewWildType("ATGGGA", 0, true)
		So(err, ShouldBeNil)

		t0 := testLib(t, "badt0", 0, "ATGGGA", "ATCGGA")

		badLib, err := seqlib.New(seqlib.Options{
			Name: "badt8", Type: seqlib.TypeBasic, Timepoint: 8,
			Reads:    "/nonexistent/reads.fastq",
			WildType: wt, MaxMutations: 2, Filter: sequence.NewFilter(),
		})
		So(err, ShouldBeNil)

		bad, err := selection.New("bad", []*seqlib.SeqLib{t0, badLib}, "ratios",
			scoring.Options{Normalization: scoring.NormWildType})
		So(err, ShouldBeNil)

		exp, err := New(Options{Name: "exp", MinSelections: 1, Combiner: CombineInvVar},
			[]*Condition{{Name: "cond1", Selections: []*selection.Selection{good, bad}}})
		So(err, ShouldBeNil)

		s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
		So(err, ShouldBeNil)

		defer s.Close()

		So(exp.Run(ctx, s, "exp"), ShouldNotBeNil)
		So(good.State(), ShouldEqual, selection.StateScored)
		So(bad.State(), ShouldEqual, selection.StateFailed)

		Convey("with the surviving replicate still combined", func() {
			combined, err := s.Get(ctx, "exp/cond1/main/variants/scores")
			So(err, ShouldBeNil)

			row, ok := combined.Get(variant.WildTypeKey)
			So(ok, ShouldBeTrue)
			So(row.Values[2], ShouldEqual, 1)
		})
	})
}

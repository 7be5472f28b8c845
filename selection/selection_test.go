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
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/mavescore/scoring"
	"github.com/wtsi-hgi/mavescore/seqlib"
	"github.com/wtsi-hgi/mavescore/sequence"
	"github.com/wtsi-hgi/mavescore/store"
	"github.com/wtsi-hgi/mavescore/variant"
)

var wtOpts = scoring.Options{Normalization: scoring.NormWildType}

// testLib makes a basic coding variant library at the given timepoint whose
// fastq holds the given sequences once each.
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

func TestSelectionValidation(t *testing.T) {
	Convey("New rejects unusable library series", t, func() {
		t0 := testLib(t, "t0", 0, "ATGGGA")
		t8 := testLib(t, "t8", 8, "ATGGGA")

		Convey("with no libraries", func() {
			_, err := New("sel1", nil, "ratios", wtOpts)
			So(err, ShouldEqual, ErrNoLibraries)
		})

		Convey("with duplicate library names", func() {
			dup := testLib(t, "t0", 8, "ATGGGA")
			_, err := New("sel1", []*seqlib.SeqLib{t0, dup}, "ratios", wtOpts)
			So(err, ShouldEqual, ErrDuplicateLibrary)
		})

		Convey("with no input timepoint", func() {
			_, err := New("sel1", []*seqlib.SeqLib{t8}, "ratios", wtOpts)
			So(err, ShouldEqual, ErrMissingInputTimepoint)
		})

		Convey("with only one timepoint", func() {
			_, err := New("sel1", []*seqlib.SeqLib{t0}, "ratios", wtOpts)
			So(err, ShouldEqual, ErrTooFewTimepoints)
		})

		Convey("with too few timepoints for regression", func() {
			_, err := New("sel1", []*seqlib.SeqLib{t0, t8}, "WLS", wtOpts)
			So(err, ShouldEqual, ErrRegressionTimepoints)
		})

		Convey("with an unknown scoring method", func() {
			_, err := New("sel1", []*seqlib.SeqLib{t0, t8}, "nonesuch", wtOpts)
			So(err, ShouldEqual, scoring.ErrUnknownMethod)
		})

		Convey("with a bad normalization", func() {
			_, err := New("sel1", []*seqlib.SeqLib{t0, t8},
				"ratios", scoring.Options{Normalization: "nonesuch"})
			So(err, ShouldEqual, scoring.ErrUnknownNormalization)
		})

		Convey("and accepts a valid series", func() {
			sel, err := New("sel1", []*seqlib.SeqLib{t0, t8}, "ratios", wtOpts)
			So(err, ShouldBeNil)
			So(sel.Name(), ShouldEqual, "sel1")
			So(sel.State(), ShouldEqual, StateUninitialized)
			So(sel.Timepoints(), ShouldResemble, []int{0, 8})
			So(sel.Labels(), ShouldResemble,
				[]string{seqlib.LabelVariants, seqlib.LabelSynonymous})
			So(sel.Method(), ShouldEqual, "ratios")
			So(sel.ProducesScores(), ShouldBeTrue)
		})
	})
}

func TestSelectionRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a selection with replicate input libraries", t, func() {
		libA := testLib(t, "libA", 0, "ATGGGA", "ATGGGA", "ATCGGA", "ATGGGG")
		libB := testLib(t, "libB", 0, "ATGGGA", "ATCGGA")
		libC := testLib(t, "libC", 8, "ATGGGA", "ATGGGA", "ATGGGA", "ATCGGA")

		sel, err := New("sel1", []*seqlib.SeqLib{libA, libB, libC}, "ratios", wtOpts)
		So(err, ShouldBeNil)

		s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
		So(err, ShouldBeNil)

		defer s.Close()

		Convey("Run counts, combines and scores, ending scored", func() {
			So(sel.Run(ctx, s, "sel1"), ShouldBeNil)
			So(sel.State(), ShouldEqual, StateScored)

			Convey("with combined counts being the pure sum per timepoint", func() {
				counts, err := s.Get(ctx, "sel1/main/variants/counts")
				So(err, ShouldBeNil)
				So(counts.Columns, ShouldResemble, []string{"c_0", "c_8"})

				row, ok := counts.Get(variant.WildTypeKey)
				So(ok, ShouldBeTrue)
				So(row.Values, ShouldResemble, []float64{3, 3})

				row, ok = counts.Get("c.3G>C (p.Met1Ile)")
				So(ok, ShouldBeTrue)
				So(row.Values, ShouldResemble, []float64{2, 1})
			})

			Convey("with elements absent at a timepoint kept only unfiltered", func() {
				counts, err := s.Get(ctx, "sel1/main/variants/counts")
				So(err, ShouldBeNil)

				_, ok := counts.Get("c.6A>G (p.=)")
				So(ok, ShouldBeFalse)

				unfiltered, err := s.Get(ctx, "sel1/main/variants/counts_unfiltered")
				So(err, ShouldBeNil)
				So(unfiltered.Len(), ShouldBeGreaterThanOrEqualTo, counts.Len())

				row, ok := unfiltered.Get("c.6A>G (p.=)")
				So(ok, ShouldBeTrue)
				So(row.Values[0], ShouldEqual, 1)
				So(math.IsNaN(row.Values[1]), ShouldBeTrue)
			})

			Convey("with scores written for every label", func() {
				for _, label := range sel.Labels() {
					ok, err := s.Has(ctx, "sel1/main/"+label+"/scores")
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
				}
			})

			Convey("and cannot be run twice", func() {
				So(sel.Run(ctx, s, "sel1"), ShouldEqual, ErrWrongState)
			})
		})
	})

	Convey("A selection whose library input is missing fails", t, func() {
		t0 := testLib(t, "t0", 0, "ATGGGA")

		s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
		So(err, ShouldBeNil)

		defer s.Close()

		badLib, err := seqlib.New(seqlib.Options{
			Name: "bad", Type: seqlib.TypeBasic, Timepoint: 8,
			Reads:    "/nonexistent/reads.fastq",
			WildType: mustWildType(t), MaxMutations: 2,
			Filter: sequence.NewFilter(),
		})
		So(err, ShouldBeNil)

		badSel, err := New("sel2", []*seqlib.SeqLib{t0, badLib}, "ratios", wtOpts)
		So(err, ShouldBeNil)

		So(badSel.Run(ctx, s, "sel2"), ShouldNotBeNil)
		So(badSel.State(), ShouldEqual, StateFailed)
	})
}

func mustWildType(t *testing.T) *sequence.WildType {
	t.Helper()

	wt, err := sequence.NewWildType("ATGGGA", 0, true)
	if err != nil {
		t.Fatal(err)
	}

	return wt
}

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

package align

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAlign(t *testing.T) {
	Convey("Given an aligner", t, func() {
		a := New()

		Convey("Identical sequences align as all matches", func() {
			steps, err := a.Align("ACGT", "ACGT")
			So(err, ShouldBeNil)
			So(len(steps), ShouldEqual, 4)

			for _, s := range steps {
				So(s.Op, ShouldEqual, Match)
			}
		})

		Convey("A single base difference is called a mismatch, not an indel pair", func() {
			steps, err := a.Align("ATG", "ATC")
			So(err, ShouldBeNil)
			So(steps, ShouldResemble, []Step{
				{RefPos: 0, QueryPos: 0, Op: Match},
				{RefPos: 1, QueryPos: 1, Op: Match},
				{RefPos: 2, QueryPos: 2, Op: Mismatch},
			})
		})

		Convey("A longer query produces one insertion step", func() {
			steps, err := a.Align("AACC", "AAGGCC")
			So(err, ShouldBeNil)

			insertions := 0

			for _, s := range steps {
				if s.Op == Insertion {
					insertions++
					So(s.Length, ShouldEqual, 2)
				}
			}

			So(insertions, ShouldEqual, 1)
		})

		Convey("A shorter query produces one deletion step", func() {
			steps, err := a.Align("AAGGCC", "AACC")
			So(err, ShouldBeNil)

			deletions := 0

			for _, s := range steps {
				if s.Op == Deletion {
					deletions++
					So(s.Length, ShouldEqual, 2)
				}
			}

			So(deletions, ShouldEqual, 1)
		})

		Convey("N and X bases are score-neutral", func() {
			steps, err := a.Align("ACGT", "ANXT")
			So(err, ShouldBeNil)
			So(len(steps), ShouldEqual, 4)

			for _, s := range steps {
				So(s.Op, ShouldNotEqual, Insertion)
				So(s.Op, ShouldNotEqual, Deletion)
			}
		})

		Convey("Alignment is deterministic across repeated calls", func() {
			first, err := a.Align("ATGGGATTTACA", "ATGGATTTTACA")
			So(err, ShouldBeNil)

			for i := 0; i < 10; i++ {
				again, err := a.Align("ATGGGATTTACA", "ATGGATTTTACA")
				So(err, ShouldBeNil)
				So(again, ShouldResemble, first)
			}

			So(a.Calls, ShouldEqual, 11)
		})

		Convey("Empty sequences are rejected", func() {
			_, err := a.Align("", "ACGT")
			So(err, ShouldEqual, ErrEmptySequence)

			_, err = a.Align("ACGT", "")
			So(err, ShouldEqual, ErrEmptySequence)
		})
	})
}

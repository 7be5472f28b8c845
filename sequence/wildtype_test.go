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

package sequence

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWildType(t *testing.T) {
	Convey("You can make a non-coding wild type from any DNA", t, func() {
		wt, err := NewWildType("acgta", 5, false)
		So(err, ShouldBeNil)
		So(wt.DNA, ShouldEqual, "ACGTA")
		So(wt.Offset, ShouldEqual, 5)
		So(wt.Len(), ShouldEqual, 5)
		So(wt.Protein, ShouldBeEmpty)
	})

	Convey("A coding wild type is translated at construction", t, func() {
		wt, err := NewWildType("ATGGGATAA", 0, true)
		So(err, ShouldBeNil)
		So(wt.Protein, ShouldEqual, "MG*")
		So(wt.ProteinOffset, ShouldEqual, 0)

		Convey("and a codon-aligned offset shifts protein coordinates", func() {
			wt, err = NewWildType("ATGGGATAA", 6, true)
			So(err, ShouldBeNil)
			So(wt.ProteinOffset, ShouldEqual, 2)
		})

		Convey("but a misaligned offset does not", func() {
			wt, err = NewWildType("ATGGGATAA", 4, true)
			So(err, ShouldBeNil)
			So(wt.ProteinOffset, ShouldEqual, 0)
		})
	})

	Convey("Invalid wild types are rejected", t, func() {
		_, err := NewWildType("", 0, false)
		So(err, ShouldEqual, ErrEmptyWildType)

		_, err = NewWildType("ACGTN", 0, false)
		So(err, ShouldEqual, ErrInvalidWildType)

		_, err = NewWildType("ACGTA", 0, true)
		So(err, ShouldEqual, ErrIncompleteCodons)
	})
}

func TestTranslate(t *testing.T) {
	Convey("Translate turns DNA into single letter amino acids", t, func() {
		So(Translate("ATGATCGGA"), ShouldEqual, "MIG")
		So(Translate("TAA"), ShouldEqual, "*")

		Convey("with unknown codons becoming placeholders", func() {
			So(Translate("ATGANG"), ShouldEqual, "M?")
			So(Translate("AXG"), ShouldEqual, "?")
		})
	})
}

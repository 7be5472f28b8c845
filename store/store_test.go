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

package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an sqlite-backed store", t, func() {
		s := openTestStore(t)

		Convey("You can put and get a table, preserving NaN values", func() {
			in := NewTable("c_0", "c_8")
			in.Add("_wt", 100, 50)
			in.Add("c.1A>G", 10, math.NaN())
			in.Sort()

			So(s.Put(ctx, "sel/main/variants/counts", in), ShouldBeNil)

			out, err := s.Get(ctx, "sel/main/variants/counts")
			So(err, ShouldBeNil)
			So(out.Columns, ShouldResemble, []string{"c_0", "c_8"})
			So(out.Len(), ShouldEqual, 2)

			row, ok := out.Get("c.1A>G")
			So(ok, ShouldBeTrue)
			So(row.Values[0], ShouldEqual, 10)
			So(math.IsNaN(row.Values[1]), ShouldBeTrue)
		})

		Convey("Putting again fully replaces the table", func() {
			first := NewTable("count")
			first.Add("a", 1)
			first.Add("b", 2)
			So(s.Put(ctx, "lib/raw/counts", first), ShouldBeNil)

			second := NewTable("count")
			second.Add("c", 3)
			So(s.Put(ctx, "lib/raw/counts", second), ShouldBeNil)

			out, err := s.Get(ctx, "lib/raw/counts")
			So(err, ShouldBeNil)
			So(out.Len(), ShouldEqual, 1)

			_, ok := out.Get("a")
			So(ok, ShouldBeFalse)
		})

		Convey("Appending needs an existing table with a matching schema", func() {
			err := s.Append(ctx, "lib/raw/counts", []Row{{Element: "a", Values: []float64{1}}})
			So(err, ShouldEqual, ErrNotFound)

			in := NewTable("count")
			in.Add("a", 1)
			So(s.Put(ctx, "lib/raw/counts", in), ShouldBeNil)

			err = s.Append(ctx, "lib/raw/counts", []Row{{Element: "b", Values: []float64{1, 2}}})
			So(err, ShouldEqual, ErrSchemaMismatch)

			So(s.Append(ctx, "lib/raw/counts",
				[]Row{{Element: "b", Values: []float64{2}}}), ShouldBeNil)

			out, err := s.Get(ctx, "lib/raw/counts")
			So(err, ShouldBeNil)
			So(out.Len(), ShouldEqual, 2)
		})

		Convey("Has, Columns and Delete behave", func() {
			in := NewTable("score", "SE")
			in.Add("a", 1, 2)
			So(s.Put(ctx, "sel/main/variants/scores", in), ShouldBeNil)

			ok, err := s.Has(ctx, "sel/main/variants/scores")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			cols, err := s.Columns(ctx, "sel/main/variants/scores")
			So(err, ShouldBeNil)
			So(cols, ShouldResemble, []string{"score", "SE"})

			So(s.Delete(ctx, "sel/main/variants/scores"), ShouldBeNil)

			ok, err = s.Has(ctx, "sel/main/variants/scores")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Select streams rows in element order through a predicate", func() {
			in := NewTable("count")
			in.Add("b", 2)
			in.Add("a", 1)
			in.Add("c", 3)
			So(s.Put(ctx, "lib/raw/counts", in), ShouldBeNil)

			var elements []string

			err := s.Select(ctx, "lib/raw/counts",
				func(r Row) bool { return r.Values[0] > 1 },
				func(r Row) error {
					elements = append(elements, r.Element)

					return nil
				})
			So(err, ShouldBeNil)
			So(elements, ShouldResemble, []string{"b", "c"})
		})

		Convey("Text tables round-trip", func() {
			in := NewTextTable("target")
			in.AddText("AAAA", "ACGT")
			So(s.Put(ctx, "lib/raw/barcodemap", in), ShouldBeNil)

			out, err := s.Get(ctx, "lib/raw/barcodemap")
			So(err, ShouldBeNil)
			So(out.Text, ShouldBeTrue)

			row, ok := out.Get("AAAA")
			So(ok, ShouldBeTrue)
			So(row.Text, ShouldEqual, "ACGT")
		})

		Convey("Bad paths are rejected", func() {
			in := NewTable("count")

			So(s.Put(ctx, "", in), ShouldEqual, ErrBadPath)
			So(s.Put(ctx, "nopath", in), ShouldEqual, ErrBadPath)
			So(s.Put(ctx, "/lead/ing", in), ShouldEqual, ErrBadPath)
		})

		Convey("A scoped view prefixes every path", func() {
			sc := s.Scoped("exp/cond/sel")
			So(sc.Prefix(), ShouldEqual, "exp/cond/sel")

			in := NewTable("count")
			in.Add("a", 1)
			So(sc.Put(ctx, "main/variants/counts", in), ShouldBeNil)

			out, err := s.Get(ctx, "exp/cond/sel/main/variants/counts")
			So(err, ShouldBeNil)
			So(out.Len(), ShouldEqual, 1)

			ok, err := sc.Has(ctx, "main/variants/counts")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Opening with an unknown driver fails", t, func() {
		_, err := Open("postgres", "dsn")
		So(err, ShouldEqual, ErrUnknownDriver)
	})
}

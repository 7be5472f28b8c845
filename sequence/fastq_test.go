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
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRevComp(t *testing.T) {
	Convey("RevComp reverse complements DNA", t, func() {
		So(RevComp("ACGT"), ShouldEqual, "ACGT")
		So(RevComp("AAAT"), ShouldEqual, "ATTT")
		So(RevComp("acgtn"), ShouldEqual, "nacgt")

		Convey("leaving unresolvable positions in place", func() {
			So(RevComp("AXG"), ShouldEqual, "CXT")
		})
	})
}

func TestRead(t *testing.T) {
	Convey("Given a read", t, func() {
		r := &Read{ID: "r1", Sequence: "ACGTN", Quality: "IIII#"}

		Convey("You can get its base qualities", func() {
			So(r.Qualities(), ShouldResemble, []int{40, 40, 40, 40, 2})
			So(r.MinQuality(), ShouldEqual, 2)
			So(r.AvgQuality(), ShouldAlmostEqual, (4*40+2)/5.0)
			So(r.NCount(), ShouldEqual, 1)
		})

		Convey("You can trim it with 1-based coordinates", func() {
			r.Trim(2, 3)
			So(r.Sequence, ShouldEqual, "CGT")
			So(r.Quality, ShouldEqual, "III")

			Convey("and a zero length keeps everything to the end", func() {
				r.Trim(2, 0)
				So(r.Sequence, ShouldEqual, "GT")
			})
		})

		Convey("Trimming beyond the read empties it", func() {
			r.Trim(10, 5)
			So(r.Sequence, ShouldBeEmpty)
			So(r.Quality, ShouldBeEmpty)
		})

		Convey("You can reverse complement it along with its qualities", func() {
			r.RevComp()
			So(r.Sequence, ShouldEqual, "NACGT")
			So(r.Quality, ShouldEqual, "#IIII")
		})
	})
}

func TestReader(t *testing.T) {
	fastq := "@r1 extra\nACGT\n+\nIIII\n" +
		"@bad\nACGT\n+\nIII\n" +
		"@r2\nTTTT\n+\nIIII\n"

	Convey("Given a fastq file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "reads.fastq")
		err := os.WriteFile(path, []byte(fastq), 0600)
		So(err, ShouldBeNil)

		Convey("You can stream its reads, skipping malformed records", func() {
			reader, err := NewReader(path)
			So(err, ShouldBeNil)

			defer reader.Close()

			read, err := reader.Next()
			So(err, ShouldBeNil)
			So(read.ID, ShouldEqual, "r1")
			So(read.Sequence, ShouldEqual, "ACGT")
			So(read.Quality, ShouldEqual, "IIII")

			_, err = reader.Next()
			So(err, ShouldEqual, ErrMalformedRecord)

			read, err = reader.Next()
			So(err, ShouldBeNil)
			So(read.Sequence, ShouldEqual, "TTTT")

			_, err = reader.Next()
			So(err, ShouldEqual, io.EOF)
		})
	})

	Convey("Given a gzipped fastq file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "reads.fastq.gz")

		f, err := os.Create(path)
		So(err, ShouldBeNil)

		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte("@r1\nACGT\n+\nIIII\n"))
		So(err, ShouldBeNil)
		So(gz.Close(), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("You can stream its reads transparently", func() {
			reader, err := NewReader(path)
			So(err, ShouldBeNil)

			defer reader.Close()

			read, err := reader.Next()
			So(err, ShouldBeNil)
			So(read.Sequence, ShouldEqual, "ACGT")

			_, err = reader.Next()
			So(err, ShouldEqual, io.EOF)
		})
	})

	Convey("Opening a missing file fails", t, func() {
		_, err := NewReader("/nonexistent/reads.fastq")
		So(err, ShouldNotBeNil)
	})
}

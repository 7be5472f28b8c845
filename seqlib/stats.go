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

package seqlib

import (
	"github.com/wtsi-hgi/mavescore/sequence"
	"github.com/wtsi-hgi/mavescore/store"
)

// Stats tallies the per-record outcomes of a counting pass. Per-record
// problems are never fatal; they are absorbed here and reported in the run
// summary and the library's raw/filter table.
type Stats struct {
	TotalReads       uint64
	Rejected         map[sequence.RejectReason]uint64
	Malformed        uint64
	UnmappedBarcodes uint64
	TooManyMutations uint64
	LengthMismatch   uint64
	Unresolvable     uint64
	MergeFailures    uint64
	Dropped          map[string]uint64
}

func newStats() Stats {
	return Stats{
		Rejected: make(map[sequence.RejectReason]uint64),
		Dropped:  make(map[string]uint64),
	}
}

// Accepted returns the number of reads that passed all filters.
func (st *Stats) Accepted() uint64 {
	rejected := st.Malformed

	for _, n := range st.Rejected {
		rejected += n
	}

	return st.TotalReads - rejected
}

// Table renders the stats as a single-column count table for persisting
// under the library's raw/filter path.
func (st *Stats) Table() *store.Table {
	t := store.NewTable("count")
	t.Add("total reads", float64(st.TotalReads))
	t.Add("malformed records", float64(st.Malformed))

	for _, reason := range sequence.Reasons() {
		t.Add("rejected "+string(reason), float64(st.Rejected[reason]))
	}

	t.Add("unmapped barcodes", float64(st.UnmappedBarcodes))
	t.Add("too many mutations", float64(st.TooManyMutations))
	t.Add("length mismatch", float64(st.LengthMismatch))
	t.Add("unresolvable", float64(st.Unresolvable))
	t.Add("merge failures", float64(st.MergeFailures))

	for _, label := range []string{LabelBarcodes, LabelIdentifiers, LabelVariants, LabelSynonymous} {
		if n, ok := st.Dropped[label]; ok {
			t.Add("dropped "+label, float64(n))
		}
	}

	t.Sort()

	return t
}

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
	"context"
	"io"

	"github.com/wtsi-hgi/mavescore/sequence"
)

// unresolvableBase marks an overlap position where the forward and reverse
// reads disagree with equal confidence.
const unresolvableBase = 'X'

// countsFromOverlap streams the forward and reverse FASTQ files in step,
// merges each pair over the configured overlap, quality-filters the merged
// read and counts its variant. Pairs that fail to merge are tallied, never
// fatal.
func (s *SeqLib) countsFromOverlap(ctx context.Context, counts countSet) error {
	fwdReader, err := sequence.NewReader(s.opts.Reads)
	if err != nil {
		return err
	}
	defer fwdReader.Close()

	revReader, err := sequence.NewReader(s.opts.ReverseReads)
	if err != nil {
		return err
	}
	defer revReader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fwd, rev, err := nextPair(fwdReader, revReader)
		if err == io.EOF {
			return nil
		} else if err == sequence.ErrMalformedRecord {
			s.stats.TotalReads++
			s.stats.Malformed++

			continue
		} else if err != nil {
			return err
		}

		s.stats.TotalReads++

		merged, ok := mergeReads(fwd, rev, s.opts.Overlap)
		if !ok {
			s.stats.MergeFailures++

			continue
		}

		if ok, reason := s.opts.Filter.Check(merged); !ok {
			s.stats.Rejected[reason]++

			continue
		}

		s.countVariant(merged.Sequence, 1, counts)
	}
}

// nextPair reads one record from each file. Both files ending together is
// EOF; either record being malformed poisons the pair.
func nextPair(fwdReader, revReader *sequence.Reader) (*sequence.Read, *sequence.Read, error) {
	fwd, ferr := fwdReader.Next()
	rev, rerr := revReader.Next()

	if ferr == io.EOF && rerr == io.EOF {
		return nil, nil, io.EOF
	}

	if ferr != nil || rerr != nil {
		if ferr == io.EOF || rerr == io.EOF || ferr == sequence.ErrMalformedRecord ||
			rerr == sequence.ErrMalformedRecord {
			return nil, nil, sequence.ErrMalformedRecord
		}

		if ferr != nil {
			return nil, nil, ferr
		}

		return nil, nil, rerr
	}

	return fwd, rev, nil
}

// mergeReads combines a forward read and a reverse read into one merged read
// over the configured overlap. Within the overlap, agreeing positions keep
// the base with the higher of the two qualities; disagreeing positions take
// the higher-quality base, or unresolvableBase when the qualities tie.
// Merging fails when the overlap geometry does not fit the reads or the
// number of disagreeing positions exceeds the configured maximum.
func mergeReads(fwd, rev *sequence.Read, opts OverlapOptions) (*sequence.Read, bool) {
	rc := &sequence.Read{ID: rev.ID, Sequence: rev.Sequence, Quality: rev.Quality}
	rc.RevComp()

	start := opts.ForwardStart - 1
	if start >= len(fwd.Sequence) {
		return nil, false
	}

	overlap := opts.Length
	if n := len(fwd.Sequence) - start; n < overlap {
		overlap = n
	}

	if len(rc.Sequence) < overlap {
		return nil, false
	}

	seq := []byte(fwd.Sequence[:start])
	qual := []byte(fwd.Quality[:start])
	mismatches := 0

	for i := 0; i < overlap; i++ {
		base, q, agree := resolvePosition(
			fwd.Sequence[start+i], fwd.Quality[start+i],
			rc.Sequence[i], rc.Quality[i])

		if !agree {
			mismatches++
		}

		seq = append(seq, base)
		qual = append(qual, q)
	}

	if mismatches > opts.MaxMismatches {
		return nil, false
	}

	seq = append(seq, rc.Sequence[overlap:]...)
	qual = append(qual, rc.Quality[overlap:]...)

	return &sequence.Read{ID: fwd.ID, Sequence: string(seq), Quality: string(qual)}, true
}

func resolvePosition(fBase, fQual, rBase, rQual byte) (byte, byte, bool) {
	if fBase == rBase {
		return fBase, maxByte(fQual, rQual), true
	}

	switch {
	case fQual > rQual:
		return fBase, fQual, false
	case rQual > fQual:
		return rBase, rQual, false
	default:
		return unresolvableBase, minByte(fQual, rQual), false
	}
}

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}

	return b
}

func minByte(a, b byte) byte {
	if a < b {
		return a
	}

	return b
}

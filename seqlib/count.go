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
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/wtsi-hgi/mavescore/sequence"
	"github.com/wtsi-hgi/mavescore/store"
	"github.com/wtsi-hgi/mavescore/variant"
)

const (
	countColumn     = "count"
	targetColumn    = "target"
	rawGroup        = "raw"
	mainGroup       = "main"
	countsTable     = "counts"
	filterTable     = "filter"
	barcodeMapTable = "barcodemap"
	countsFields    = 2
)

// countSet accumulates element counts per label during a counting pass.
type countSet map[string]map[string]float64

func (cs countSet) add(label, element string, n float64) {
	counts, ok := cs[label]
	if !ok {
		counts = make(map[string]float64)
		cs[label] = counts
	}

	counts[element] += n
}

// Count consumes the library's configured input and persists one element
// table per supported element type under base in the store: the unfiltered
// counts under raw/<label>/counts for audit, and the min-count-filtered
// counts under main/<label>/counts. Malformed records are skipped and
// tallied, never fatal.
func (s *SeqLib) Count(ctx context.Context, st *store.Store, base string) error {
	s.stats = newStats()
	counts := make(countSet)

	var err error

	switch {
	case s.opts.CountsFile != "":
		err = s.countsFromFile(ctx, counts)
	case s.opts.Type.IsOverlap():
		err = s.countsFromOverlap(ctx, counts)
	default:
		err = s.countsFromReads(ctx, counts)
	}

	if err != nil {
		return err
	}

	if err := s.mapBarcodes(ctx, counts); err != nil {
		return err
	}

	return s.writeTables(ctx, st, base, counts)
}

// countsFromFile copies an externally supplied element/count table verbatim
// into the library's primary label.
func (s *SeqLib) countsFromFile(ctx context.Context, counts countSet) error {
	rc, err := sequence.Open(s.opts.CountsFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	label := s.Labels()[0]
	scanner := bufio.NewScanner(rc)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)

		var n uint64

		if len(fields) == countsFields {
			n, err = strconv.ParseUint(fields[1], 10, 64)
		}

		if len(fields) != countsFields || err != nil {
			s.stats.Malformed++

			continue
		}

		counts.add(label, fields[0], float64(n))
	}

	return scanner.Err()
}

// countsFromReads streams the FASTQ file and counts barcodes or calls
// variants read by read.
func (s *SeqLib) countsFromReads(ctx context.Context, counts countSet) error {
	reader, err := sequence.NewReader(s.opts.Reads)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		read, err := reader.Next()
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

		read.Trim(s.opts.TrimStart, s.opts.TrimLength)

		if s.opts.Revcomp {
			read.RevComp()
		}

		s.processRead(read, counts)
	}
}

// processRead applies quality filtering and then counts the read according
// to the library's capabilities.
func (s *SeqLib) processRead(read *sequence.Read, counts countSet) {
	if ok, reason := s.opts.Filter.Check(read); !ok {
		s.stats.Rejected[reason]++

		return
	}

	if s.opts.Type.HasBarcodes() {
		counts.add(LabelBarcodes, strings.ToUpper(read.Sequence), 1)

		return
	}

	s.countVariant(read.Sequence, 1, counts)
}

// countVariant calls the mutations in dna and adds n to the resulting
// variant (and, for coding sequences, synonymous) elements. Recoverable
// calling failures are tallied and the variant dropped.
func (s *SeqLib) countVariant(dna string, n float64, counts countSet) {
	muts, err := s.caller.Call(dna)

	switch err {
	case nil:
	case variant.ErrTooManyMutations:
		s.stats.TooManyMutations += uint64(n)

		return
	case variant.ErrLengthMismatch:
		s.stats.LengthMismatch += uint64(n)

		return
	case variant.ErrUnresolvable:
		s.stats.Unresolvable += uint64(n)

		return
	default:
		s.stats.Malformed += uint64(n)

		return
	}

	counts.add(LabelVariants, s.caller.String(muts), n)

	if s.opts.WildType.Coding {
		counts.add(LabelSynonymous, variant.ProteinString(muts), n)
	}
}

// mapBarcodes converts barcode counts into variant or identifier counts via
// the barcode map. Unmapped barcodes are tallied as unresolved and their
// counts dropped.
func (s *SeqLib) mapBarcodes(ctx context.Context, counts countSet) error {
	if s.bcMap == nil || (!s.opts.Type.HasVariants() && !s.opts.Type.HasIdentifiers()) {
		return nil
	}

	barcodeCounts := counts[LabelBarcodes]

	for _, bc := range sortedElements(barcodeCounts) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := barcodeCounts[bc]

		target, ok := s.bcMap.Lookup(bc)
		if !ok {
			s.stats.UnmappedBarcodes += uint64(n)

			continue
		}

		if s.opts.Type.HasIdentifiers() {
			counts.add(LabelIdentifiers, target, n)
		} else {
			s.countVariant(target, n, counts)
		}
	}

	return nil
}

// writeTables persists the raw and min-count-filtered tables for every
// label, plus the filter stats and, for mapped libraries, the subset of the
// barcode map that was observed.
func (s *SeqLib) writeTables(ctx context.Context, st *store.Store, base string,
	counts countSet) error {
	for _, label := range s.Labels() {
		raw := store.NewTable(countColumn)
		filtered := store.NewTable(countColumn)
		minCount := s.minCount(label)

		for _, element := range sortedElements(counts[label]) {
			n := counts[label][element]
			raw.Add(element, n)

			if n >= float64(minCount) {
				filtered.Add(element, n)
			} else {
				s.stats.Dropped[label]++
			}
		}

		if err := st.Put(ctx, tablePath(base, rawGroup, label, countsTable), raw); err != nil {
			return err
		}

		if err := st.Put(ctx, tablePath(base, mainGroup, label, countsTable), filtered); err != nil {
			return err
		}
	}

	if err := s.writeBarcodeMap(ctx, st, base, counts); err != nil {
		return err
	}

	return st.Put(ctx, base+"/"+rawGroup+"/"+filterTable, s.stats.Table())
}

func (s *SeqLib) writeBarcodeMap(ctx context.Context, st *store.Store, base string,
	counts countSet) error {
	if s.bcMap == nil {
		return nil
	}

	t := store.NewTextTable(targetColumn)

	for _, bc := range sortedElements(counts[LabelBarcodes]) {
		if target, ok := s.bcMap.Lookup(bc); ok {
			t.AddText(bc, target)
		}
	}

	return st.Put(ctx, base+"/"+rawGroup+"/"+barcodeMapTable, t)
}

func tablePath(base, group, label, table string) string {
	return base + "/" + group + "/" + label + "/" + table
}

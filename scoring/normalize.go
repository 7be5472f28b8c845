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

package scoring

import (
	"context"
	"math"

	"github.com/wtsi-hgi/mavescore/store"
	"github.com/wtsi-hgi/mavescore/variant"
)

const (
	labelVariants    = "variants"
	labelIdentifiers = "identifiers"

	countsTable           = "counts"
	countsUnfilteredTable = "counts_unfiltered"
)

func mainTable(label, table string) string {
	return "main/" + label + "/" + table
}

// sharedCounts returns, per timepoint column of the label's counts table, the
// library-size normalization term (with pseudocount already added) demanded
// by the configured method: the wild type element's counts, the column sums
// over complete cases, or the column sums over all unfiltered elements.
func sharedCounts(ctx context.Context, st *store.Scoped, label string,
	labels []string, opts Options, ncols int) ([]float64, error) {
	switch opts.Normalization {
	case NormWildType:
		return wildTypeCounts(ctx, st, labels, ncols)
	case NormComplete:
		return columnSums(ctx, st, mainTable(label, countsTable), ncols)
	case NormFull:
		return columnSums(ctx, st, mainTable(label, countsUnfilteredTable), ncols)
	default:
		return nil, ErrUnknownNormalization
	}
}

// wildTypeCounts looks up the wild type element's counts in the variants
// table, falling back to identifiers when no variant data is present.
func wildTypeCounts(ctx context.Context, st *store.Scoped, labels []string,
	ncols int) ([]float64, error) {
	wtLabel := ""

	for _, label := range labels {
		if label == labelVariants {
			wtLabel = labelVariants

			break
		} else if label == labelIdentifiers {
			wtLabel = labelIdentifiers
		}
	}

	if wtLabel == "" {
		return nil, ErrNoWildTypeCounts
	}

	var wt []float64

	err := st.Select(ctx, mainTable(wtLabel, countsTable),
		func(r store.Row) bool { return r.Element == variant.WildTypeKey },
		func(r store.Row) error {
			wt = append([]float64{}, r.Values...)

			return nil
		})
	if err != nil {
		return nil, err
	}

	if len(wt) != ncols {
		return nil, ErrNoWildTypeCounts
	}

	for i := range wt {
		wt[i] += pseudocount
	}

	return wt, nil
}

// columnSums sums each counts column over all rows, skipping NaN entries,
// and adds the pseudocount.
func columnSums(ctx context.Context, st *store.Scoped, path string,
	ncols int) ([]float64, error) {
	sums := make([]float64, ncols)

	err := st.Select(ctx, path, nil, func(r store.Row) error {
		for i, v := range r.Values {
			if i < ncols && !math.IsNaN(v) {
				sums[i] += v
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range sums {
		sums[i] += pseudocount
	}

	return sums, nil
}

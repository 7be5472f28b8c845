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

// package align implements global alignment of a query sequence against a
// wild type reference using Needleman-Wunsch dynamic programming.

package align

import "strings"

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrEmptySequence = Error("sequences to align must not be empty")

	defaultGapPenalty = -1
)

// Op is the kind of edit a Step describes.
type Op int

const (
	Match Op = iota
	Mismatch
	Insertion
	Deletion
)

func (o Op) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case Insertion:
		return "insertion"
	default:
		return "deletion"
	}
}

// Step is one entry in the edit script produced by Align. RefPos and QueryPos
// are 0-based positions in the reference and query. For indels, Length is the
// number of bases inserted or deleted with respect to the reference.
type Step struct {
	RefPos   int
	QueryPos int
	Op       Op
	Length   int
}

// DefaultSimilarity is the similarity matrix used when no custom scoring is
// supplied. The 'X' base is the unresolvable-position marker produced when
// merging overlapping read pairs; it is score-neutral against everything.
func DefaultSimilarity() map[byte]map[byte]int {
	bases := []byte{'A', 'C', 'G', 'T', 'N', 'X'}
	sim := make(map[byte]map[byte]int, len(bases))

	for _, a := range bases {
		sim[a] = make(map[byte]int, len(bases))

		for _, b := range bases {
			switch {
			case a == 'N' || b == 'N' || a == 'X' || b == 'X':
				sim[a][b] = 0
			case a == b:
				sim[a][b] = 1
			default:
				sim[a][b] = -1
			}
		}
	}

	return sim
}

type trace byte

const (
	traceEnd trace = iota
	traceMat
	traceIns
	traceDel
)

type cell struct {
	score int
	trace trace
}

// Aligner performs Needleman-Wunsch global alignment with a configurable
// similarity matrix and gap penalty. It is not safe for concurrent use.
type Aligner struct {
	similarity map[byte]map[byte]int
	gap        int

	// Calls counts how many alignments have been performed, since the
	// quadratic cost of alignment dominates a counting run when enabled.
	Calls int
}

// New returns an Aligner using DefaultSimilarity and a gap penalty of -1.
func New() *Aligner {
	return NewWithScoring(DefaultSimilarity(), defaultGapPenalty)
}

// NewWithScoring returns an Aligner using the given similarity matrix and gap
// penalty, which is applied to both gap opening and extension.
func NewWithScoring(similarity map[byte]map[byte]int, gap int) *Aligner {
	return &Aligner{similarity: similarity, gap: gap}
}

func (a *Aligner) score(x, y byte) int {
	return a.similarity[x][y]
}

// Align globally aligns query against ref and returns the edit script.
// Ties are broken deterministically, preferring a substitution over an
// insertion plus deletion, so repeated calls with the same inputs always
// produce the same script.
func (a *Aligner) Align(ref, query string) ([]Step, error) {
	if ref == "" || query == "" {
		return nil, ErrEmptySequence
	}

	ref = strings.ToUpper(ref)
	query = strings.ToUpper(query)

	n, m := len(ref), len(query)
	matrix := a.buildMatrix(ref, query)

	steps := traceback(matrix, ref, query, n, m)
	a.Calls++

	return combineIndels(steps), nil
}

func (a *Aligner) buildMatrix(ref, query string) []cell {
	n, m := len(ref), len(query)
	matrix := make([]cell, (n+1)*(m+1))
	idx := func(i, j int) int { return i*(m+1) + j }

	for i := 1; i <= n; i++ {
		matrix[idx(i, 0)] = cell{score: a.gap * i, trace: traceDel}
	}

	for j := 1; j <= m; j++ {
		matrix[idx(0, j)] = cell{score: a.gap * j, trace: traceIns}
	}

	matrix[0] = cell{score: 0, trace: traceEnd}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := matrix[idx(i-1, j-1)].score + a.score(ref[i-1], query[j-1])
			del := matrix[idx(i-1, j)].score + a.gap
			ins := matrix[idx(i, j-1)].score + a.gap

			best := cell{score: sub, trace: traceMat}
			if del > best.score {
				best = cell{score: del, trace: traceDel}
			}

			if ins > best.score {
				best = cell{score: ins, trace: traceIns}
			}

			matrix[idx(i, j)] = best
		}
	}

	return matrix
}

func traceback(matrix []cell, ref, query string, n, m int) []Step {
	idx := func(i, j int) int { return i*(m+1) + j }
	steps := make([]Step, 0, n+m)
	i, j := n, m

	for i > 0 || j > 0 {
		switch matrix[idx(i, j)].trace {
		case traceMat:
			op := Match
			if ref[i-1] != query[j-1] {
				op = Mismatch
			}

			steps = append(steps, Step{RefPos: i - 1, QueryPos: j - 1, Op: op})
			i--
			j--
		case traceIns:
			steps = append(steps, Step{RefPos: i - 1, QueryPos: j - 1, Op: Insertion, Length: 1})
			j--
		case traceDel:
			steps = append(steps, Step{RefPos: i - 1, QueryPos: j - 1, Op: Deletion, Length: 1})
			i--
		case traceEnd:
			return reverse(steps)
		}
	}

	return reverse(steps)
}

func reverse(steps []Step) []Step {
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	return steps
}

// combineIndels merges runs of adjacent single-base insertions or deletions
// into one step per indel, keeping the first step's positions.
func combineIndels(steps []Step) []Step {
	combined := make([]Step, 0, len(steps))

	for _, s := range steps {
		if len(combined) > 0 {
			last := &combined[len(combined)-1]

			if s.Op == last.Op && (s.Op == Insertion || s.Op == Deletion) {
				last.Length += s.Length

				continue
			}
		}

		combined = append(combined, s)
	}

	return combined
}

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
	"regexp"
	"strings"
)

const (
	ErrInvalidWildType    = Error("wild type sequence contains unexpected characters")
	ErrIncompleteCodons   = Error("coding wild type sequence contains incomplete codons")
	ErrEmptyWildType      = Error("wild type sequence must not be empty")
	codonLength           = 3
	wildTypeSequenceRegex = "^[ACGT]+$"
)

var reWildType = regexp.MustCompile(wildTypeSequenceRegex)

// WildType is the immutable reference sequence that variants are called
// against. For coding sequences the protein translation is derived at
// construction time.
type WildType struct {
	DNA           string
	Offset        int
	Coding        bool
	Protein       string
	ProteinOffset int
}

// NewWildType validates and builds a WildType from a DNA sequence, a
// positional offset applied to reported mutation coordinates, and a flag
// saying whether the sequence is protein coding.
//
// Coding sequences must consist of complete codons; violating this is a
// configuration error, not a per-read failure. A coding offset that is not a
// multiple of three is ignored for protein coordinates.
func NewWildType(dna string, offset int, coding bool) (*WildType, error) {
	dna = strings.ToUpper(dna)

	if dna == "" {
		return nil, ErrEmptyWildType
	}

	if !reWildType.MatchString(dna) {
		return nil, ErrInvalidWildType
	}

	wt := &WildType{DNA: dna, Offset: offset, Coding: coding}

	if coding {
		if len(dna)%codonLength != 0 {
			return nil, ErrIncompleteCodons
		}

		wt.Protein = Translate(dna)

		if offset%codonLength == 0 {
			wt.ProteinOffset = offset / codonLength
		}
	}

	return wt, nil
}

// Len returns the length of the wild type DNA sequence.
func (wt *WildType) Len() int {
	return len(wt.DNA)
}

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

// package variant converts DNA sequences into normalized mutation lists
// against a wild type reference, optionally via alignment.

package variant

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wtsi-hgi/mavescore/align"
	"github.com/wtsi-hgi/mavescore/sequence"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoWildType       = Error("variant calling requires a wild type sequence")
	ErrInvalidSequence  = Error("variant DNA sequence contains unexpected characters")
	ErrTooManyMutations = Error("variant has too many mutations")
	ErrLengthMismatch   = Error("variant length differs from wild type and alignment is disabled")
	ErrUnresolvable     = Error("variant contains unresolvable positions")

	// WildTypeKey is the element key used for reads matching the wild type
	// sequence exactly.
	WildTypeKey = "_wt"

	// SynonymousKey is the element key used at the protein level for variants
	// whose nucleotide changes are all synonymous.
	SynonymousKey = "_sy"

	codonLength = 3
)

var reVariantDNA = regexp.MustCompile("^[ACGTNX]+$")

// MutType is the kind of change a Mutation describes.
type MutType int

const (
	Substitution MutType = iota
	Insertion
	Deletion
)

// Mutation is one normalized change relative to the wild type sequence.
// Pos is the 0-based position in the wild type: the substituted or first
// deleted base, or the base before which an insertion occurs. Protein holds
// the derived protein-level change for coding sequences, or is empty.
type Mutation struct {
	Pos     int
	Type    MutType
	Ref     byte
	Alt     byte
	Seq     string
	Length  int
	Protein string
}

// change renders the nucleotide part of the mutation without coordinates.
func (m Mutation) change() string {
	switch m.Type {
	case Substitution:
		return fmt.Sprintf("%c>%c", m.Ref, m.Alt)
	case Insertion:
		return fmt.Sprintf("ins%s", m.Seq)
	default:
		return "del"
	}
}

// IsIndel returns true for insertions and deletions.
func (m Mutation) IsIndel() bool {
	return m.Type != Substitution
}

// Caller turns DNA sequences into mutation lists against a fixed WildType.
// Alignment is only attempted when enabled, because of its quadratic cost;
// without it, length mismatches and excess mutations discard the variant.
type Caller struct {
	WT                  *sequence.WildType
	MaxMutations        int
	DiscardUnresolvable bool

	aligner *align.Aligner
	cache   map[string][]Mutation
}

// NewCaller returns a Caller for the given wild type. MaxMutations is the
// ceiling above which a variant is discarded. If useAligner is true, variants
// whose length differs from the wild type (or that exceed MaxMutations during
// the exact-length scan) are aligned instead of being discarded outright.
func NewCaller(wt *sequence.WildType, maxMutations int, useAligner bool) (*Caller, error) {
	if wt == nil {
		return nil, ErrNoWildType
	}

	c := &Caller{WT: wt, MaxMutations: maxMutations}

	if useAligner {
		c.aligner = align.New()
		c.cache = make(map[string][]Mutation)
	}

	return c, nil
}

// Call identifies the mutations in dna relative to the wild type, in position
// order. A wild type sequence returns an empty list. Per-read recoverable
// failures are ErrTooManyMutations, ErrLengthMismatch and ErrUnresolvable;
// ErrInvalidSequence indicates a malformed input record.
func (c *Caller) Call(dna string) ([]Mutation, error) {
	dna = strings.ToUpper(dna)

	if !reVariantDNA.MatchString(dna) {
		return nil, ErrInvalidSequence
	}

	if c.DiscardUnresolvable && strings.ContainsRune(dna, 'X') {
		return nil, ErrUnresolvable
	}

	muts, err := c.findMutations(dna)
	if err != nil {
		return nil, err
	}

	if c.WT.Coding {
		annotateProtein(c.WT, dna, muts)
	}

	return muts, nil
}

func (c *Caller) findMutations(dna string) ([]Mutation, error) {
	if len(dna) != c.WT.Len() {
		if c.aligner == nil {
			return nil, ErrLengthMismatch
		}

		return c.alignMutations(dna)
	}

	muts := make([]Mutation, 0)

	for i := 0; i < len(dna); i++ {
		if dna[i] == c.WT.DNA[i] {
			continue
		}

		muts = append(muts, Mutation{
			Pos:  i,
			Type: Substitution,
			Ref:  c.WT.DNA[i],
			Alt:  dna[i],
		})

		if len(muts) > c.MaxMutations {
			if c.aligner == nil {
				return nil, ErrTooManyMutations
			}

			return c.alignMutations(dna)
		}
	}

	return muts, nil
}

func (c *Caller) alignMutations(dna string) ([]Mutation, error) {
	if cached, ok := c.cache[dna]; ok {
		if cached == nil {
			return nil, ErrTooManyMutations
		}

		return cached, nil
	}

	steps, err := c.aligner.Align(c.WT.DNA, dna)
	if err != nil {
		return nil, err
	}

	muts := make([]Mutation, 0)

	for _, s := range steps {
		switch s.Op {
		case align.Match:
			continue
		case align.Mismatch:
			muts = append(muts, Mutation{
				Pos:  s.RefPos,
				Type: Substitution,
				Ref:  c.WT.DNA[s.RefPos],
				Alt:  dna[s.QueryPos],
			})
		case align.Insertion:
			muts = append(muts, Mutation{
				Pos:    s.RefPos + 1,
				Type:   Insertion,
				Seq:    dna[s.QueryPos : s.QueryPos+s.Length],
				Length: s.Length,
			})
		case align.Deletion:
			muts = append(muts, Mutation{
				Pos:    s.RefPos,
				Type:   Deletion,
				Length: s.Length,
			})
		}
	}

	if len(muts) > c.MaxMutations {
		c.cache[dna] = nil

		return nil, ErrTooManyMutations
	}

	c.cache[dna] = muts

	return muts, nil
}

// annotateProtein fills in the Protein field of each mutation by translating
// the variant sequence. Indels are annotated as frameshifts; only valid for
// equal-length variants, so indel annotation is positional only.
func annotateProtein(wt *sequence.WildType, dna string, muts []Mutation) {
	protein := sequence.Translate(dna)

	for i := range muts {
		m := &muts[i]
		codon := m.Pos / codonLength
		proPos := codon + wt.ProteinOffset + 1

		if codon >= len(wt.Protein) {
			continue
		}

		wtAA := wt.Protein[codon]

		switch {
		case m.IsIndel():
			m.Protein = fmt.Sprintf("p.%s%dfs", sequence.AACodes[wtAA], proPos)
		case codon < len(protein) && protein[codon] == wtAA:
			m.Protein = "p.="
		case codon < len(protein):
			m.Protein = fmt.Sprintf("p.%s%d%s",
				sequence.AACodes[wtAA], proPos, sequence.AACodes[protein[codon]])
		}
	}
}

// String renders the mutation list as the element key used in count tables:
// comma-separated HGVS-style nucleotide changes, each with its protein-level
// annotation when coding. An empty list renders as WildTypeKey.
func (c *Caller) String(muts []Mutation) string {
	if len(muts) == 0 {
		return WildTypeKey
	}

	parts := make([]string, len(muts))

	for i, m := range muts {
		part := fmt.Sprintf("c.%d%s", m.Pos+c.WT.Offset+1, m.change())

		if m.Protein != "" {
			part += fmt.Sprintf(" (%s)", m.Protein)
		}

		parts[i] = part
	}

	return strings.Join(parts, ", ")
}

// ProteinString renders the protein-level element key for a coding variant:
// the unique non-synonymous protein changes in position order, SynonymousKey
// if every change is synonymous, or WildTypeKey for no changes at all.
func ProteinString(muts []Mutation) string {
	if len(muts) == 0 {
		return WildTypeKey
	}

	seen := make(map[string]bool)
	parts := make([]string, 0, len(muts))

	for _, m := range muts {
		if m.Protein == "" || m.Protein == "p.=" || seen[m.Protein] {
			continue
		}

		seen[m.Protein] = true
		parts = append(parts, m.Protein)
	}

	if len(parts) == 0 {
		return SynonymousKey
	}

	return strings.Join(parts, ", ")
}

// Apply reconstructs the variant sequence by applying the mutation list to
// the wild type. It is the inverse of Call for every non-failing call.
func Apply(wt *sequence.WildType, muts []Mutation) string {
	sorted := make([]Mutation, len(muts))
	copy(sorted, muts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pos > sorted[j].Pos })

	b := []byte(wt.DNA)

	for _, m := range sorted {
		switch m.Type {
		case Substitution:
			b[m.Pos] = m.Alt
		case Deletion:
			b = append(b[:m.Pos], b[m.Pos+m.Length:]...)
		case Insertion:
			ins := make([]byte, 0, len(b)+len(m.Seq))
			ins = append(ins, b[:m.Pos]...)
			ins = append(ins, m.Seq...)
			b = append(ins, b[m.Pos:]...)
		}
	}

	return string(b)
}

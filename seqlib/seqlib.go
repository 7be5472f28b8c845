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

// package seqlib implements the sequencing library counters: each library
// reads FASTQ (or a precomputed counts table), filters reads, resolves
// barcodes and calls variants as its type requires, and persists raw and
// min-count-filtered element tables in the shared store.

package seqlib

import (
	"sort"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/mavescore/barcode"
	"github.com/wtsi-hgi/mavescore/sequence"
	"github.com/wtsi-hgi/mavescore/variant"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidType        = Error("invalid sequencing library type")
	ErrBadTimepoint       = Error("timepoint must not be negative")
	ErrNoReads            = Error("no reads or counts file configured")
	ErrNoReverseReads     = Error("overlap libraries need forward and reverse reads")
	ErrNoWildType         = Error("variant calling libraries need a wild type sequence")
	ErrNoBarcodeMap       = Error("barcode mapping libraries need a barcode map")
	ErrReservedName       = Error("library name is reserved")
	ErrBadOverlapConfig   = Error("overlap start and length must be positive")
	ErrCountsWithReads    = Error("configure either a counts file or reads, not both")
	ErrVariantBarcodeMap  = Error("barcode variant libraries need a variant barcode map")
	ErrIdentifierBarcodes = Error("barcode identifier libraries need an identifier barcode map")

	// Element type labels, in their fixed reporting order.
	LabelBarcodes    = "barcodes"
	LabelIdentifiers = "identifiers"
	LabelVariants    = "variants"
	LabelSynonymous  = "synonymous"
)

// Type is the kind of sequencing library, which determines the set of
// element types it counts.
type Type string

const (
	TypeBasic             Type = "basic"
	TypeBarcodeOnly       Type = "barcode"
	TypeBarcodeVariant    Type = "barcodevariant"
	TypeBarcodeIdentifier Type = "barcodeid"
	TypeOverlap           Type = "overlap"
)

// StringToType converts a string to a library Type.
func StringToType(s string) (Type, error) {
	switch Type(s) {
	case TypeBasic, TypeBarcodeOnly, TypeBarcodeVariant, TypeBarcodeIdentifier, TypeOverlap:
		return Type(s), nil
	default:
		return "", ErrInvalidType
	}
}

// HasBarcodes reports whether libraries of this type count barcodes.
func (t Type) HasBarcodes() bool {
	return t == TypeBarcodeOnly || t == TypeBarcodeVariant || t == TypeBarcodeIdentifier
}

// HasVariants reports whether libraries of this type call and count variants.
func (t Type) HasVariants() bool {
	return t == TypeBasic || t == TypeBarcodeVariant || t == TypeOverlap
}

// HasIdentifiers reports whether libraries of this type count identifiers.
func (t Type) HasIdentifiers() bool {
	return t == TypeBarcodeIdentifier
}

// IsOverlap reports whether libraries of this type merge overlapping read
// pairs before variant calling.
func (t Type) IsOverlap() bool {
	return t == TypeOverlap
}

// OverlapOptions configures merging of overlapping paired-end reads.
// ForwardStart is the 1-based position in the forward read where the
// reverse-complemented reverse read begins to align.
type OverlapOptions struct {
	ForwardStart        int
	Length              int
	MaxMismatches       int
	DiscardUnresolvable bool
}

// Options fully describes a sequencing library. Only the fields its Type
// requires need to be set.
type Options struct {
	Name      string
	Type      Type
	Timepoint int

	// Input: a FASTQ file (pair for overlap libraries), or a precomputed
	// counts table that bypasses read processing.
	Reads        string
	ReverseReads string
	CountsFile   string

	Revcomp    bool
	TrimStart  int
	TrimLength int
	Filter     sequence.Filter

	WildType     *sequence.WildType
	MaxMutations int
	UseAligner   bool

	BarcodeMapFile string

	// MinCounts maps element type label to the minimum count an element
	// needs to survive the filtering pass.
	MinCounts map[string]int

	Overlap OverlapOptions
}

// SeqLib counts the elements of one sequencing library at one timepoint.
type SeqLib struct {
	opts   Options
	bcMap  *barcode.Map
	caller *variant.Caller
	logger log15.Logger
	stats  Stats
}

// New validates the options, loads the barcode map if one is configured, and
// returns a ready-to-count SeqLib. Missing required configuration is fatal
// here, before any read processing starts.
func New(opts Options) (*SeqLib, error) {
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	lib := &SeqLib{
		opts:   opts,
		logger: log15.New("library", opts.Name),
	}

	if opts.Type.HasBarcodes() && opts.CountsFile == "" {
		bcMap, err := barcode.NewMap(opts.BarcodeMapFile, opts.Type.HasVariants())
		if err != nil {
			return nil, err
		}

		lib.bcMap = bcMap
	}

	if opts.Type.HasVariants() {
		caller, err := variant.NewCaller(opts.WildType, opts.MaxMutations, opts.UseAligner)
		if err != nil {
			return nil, err
		}

		caller.DiscardUnresolvable = opts.Overlap.DiscardUnresolvable
		lib.caller = caller
	}

	return lib, nil
}

func validateOptions(opts *Options) error {
	if _, err := StringToType(string(opts.Type)); err != nil {
		return err
	}

	if opts.Name == "main" || opts.Name == "raw" {
		return ErrReservedName
	}

	if opts.Timepoint < 0 {
		return ErrBadTimepoint
	}

	if err := validateInput(opts); err != nil {
		return err
	}

	if opts.Type.HasVariants() && opts.WildType == nil {
		return ErrNoWildType
	}

	if opts.Type.HasBarcodes() && opts.CountsFile == "" && opts.BarcodeMapFile == "" {
		return ErrNoBarcodeMap
	}

	return nil
}

func validateInput(opts *Options) error {
	if opts.CountsFile != "" {
		if opts.Reads != "" {
			return ErrCountsWithReads
		}

		return nil
	}

	if opts.Reads == "" {
		return ErrNoReads
	}

	if opts.Type.IsOverlap() {
		if opts.ReverseReads == "" {
			return ErrNoReverseReads
		}

		if opts.Overlap.ForwardStart < 1 || opts.Overlap.Length < 1 {
			return ErrBadOverlapConfig
		}
	}

	return nil
}

// Name returns the library name, used as its store path component.
func (s *SeqLib) Name() string {
	return s.opts.Name
}

// Timepoint returns the library's timepoint; 0 is the input library.
func (s *SeqLib) Timepoint() int {
	return s.opts.Timepoint
}

// Type returns the library type.
func (s *SeqLib) Type() Type {
	return s.opts.Type
}

// BarcodeMap returns the loaded barcode map, or nil for types without one.
func (s *SeqLib) BarcodeMap() *barcode.Map {
	return s.bcMap
}

// Stats returns the per-record tallies accumulated by the last Count.
func (s *SeqLib) Stats() Stats {
	return s.stats
}

// Labels returns the element type labels this library counts, in reporting
// order. Coding variant libraries additionally count protein-level
// synonymous elements.
func (s *SeqLib) Labels() []string {
	var labels []string

	if s.opts.Type.HasBarcodes() {
		labels = append(labels, LabelBarcodes)
	}

	if s.opts.Type.HasIdentifiers() {
		labels = append(labels, LabelIdentifiers)
	}

	if s.opts.Type.HasVariants() {
		labels = append(labels, LabelVariants)

		if s.opts.WildType != nil && s.opts.WildType.Coding {
			labels = append(labels, LabelSynonymous)
		}
	}

	if s.opts.CountsFile != "" {
		// counts file input only populates the primary label
		return labels[:1]
	}

	return labels
}

// minCount returns the filtering threshold for the given label.
func (s *SeqLib) minCount(label string) int {
	return s.opts.MinCounts[label]
}

// sortedElements returns the element keys of a count map in sorted order for
// deterministic table writes.
func sortedElements(counts map[string]float64) []string {
	elements := make([]string, 0, len(counts))

	for element := range counts {
		elements = append(elements, element)
	}

	sort.Strings(elements)

	return elements
}

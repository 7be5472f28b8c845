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

// package barcode provides the static barcode-to-target dictionary loaded
// once per run from a tab-separated map file.

package barcode

import (
	"bufio"
	"regexp"
	"sort"
	"strings"

	"github.com/wtsi-hgi/mavescore/sequence"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrDuplicateBarcode = Error("barcode assigned to multiple unique values")
	ErrBadLineFormat    = Error("unexpected barcode map line format")
	ErrInvalidBarcode   = Error("barcode contains unexpected characters")
	ErrInvalidTarget    = Error("barcode target contains unexpected characters")

	commentPrefix = "#"
	mapLineFields = 2
)

var (
	reBarcode    = regexp.MustCompile("^[ACGT]+$")
	reVariantDNA = regexp.MustCompile("^[ACGTN]+$")
	reIdentifier = regexp.MustCompile(`^\S+$`)
)

// Map is a read-only dictionary from barcode to a variant DNA sequence or an
// identifier string. A barcode maps to exactly one target; a map file that
// assigns a barcode to two different targets fails to load, leaving no
// partial map installed. Repeated identical assignments are permitted.
type Map struct {
	targets   map[string]string
	isVariant bool
}

// NewMap loads the whitespace-separated (barcode, target) file at path,
// which may be plain, gzipped or bzip2-compressed. Comment lines starting
// with '#' and blank lines are ignored. If isVariant is true, targets are
// validated as DNA sequences; otherwise as identifiers.
func NewMap(path string, isVariant bool) (*Map, error) {
	rc, err := sequence.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	targets := make(map[string]string)
	scanner := bufio.NewScanner(rc)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		barcode, target, err := parseLine(line, isVariant)
		if err != nil {
			return nil, err
		}

		if existing, ok := targets[barcode]; ok && existing != target {
			return nil, ErrDuplicateBarcode
		}

		targets[barcode] = target
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Map{targets: targets, isVariant: isVariant}, nil
}

func parseLine(line string, isVariant bool) (string, string, error) {
	fields := strings.Fields(line)
	if len(fields) != mapLineFields {
		return "", "", ErrBadLineFormat
	}

	barcode := strings.ToUpper(fields[0])
	if !reBarcode.MatchString(barcode) {
		return "", "", ErrInvalidBarcode
	}

	target := fields[1]

	if isVariant {
		target = strings.ToUpper(target)
		if !reVariantDNA.MatchString(target) {
			return "", "", ErrInvalidTarget
		}
	} else if !reIdentifier.MatchString(target) {
		return "", "", ErrInvalidTarget
	}

	return barcode, target, nil
}

// Lookup returns the target for the given barcode, and whether the barcode
// is in the map.
func (m *Map) Lookup(barcode string) (string, bool) {
	target, ok := m.targets[barcode]

	return target, ok
}

// IsVariant returns true if targets are variant DNA sequences rather than
// identifiers.
func (m *Map) IsVariant() bool {
	return m.isVariant
}

// Len returns the number of barcodes in the map.
func (m *Map) Len() int {
	return len(m.targets)
}

// Barcodes returns all barcodes in the map, sorted, for deterministic
// iteration when persisting the map.
func (m *Map) Barcodes() []string {
	barcodes := make([]string, 0, len(m.targets))

	for barcode := range m.targets {
		barcodes = append(barcodes, barcode)
	}

	sort.Strings(barcodes)

	return barcodes
}

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

// package sequence provides FASTQ record handling, read filtering and wild
// type reference sequences for the counting pipeline.

package sequence

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrMalformedRecord = Error("malformed fastq record")
	ErrInvalidBase     = Error("sequence contains unexpected characters")

	qualityOffset = 33
	recordLines   = 4
	maxLineBytes  = 1024 * 1024
)

var complements = map[byte]byte{
	'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C', 'N': 'N', 'X': 'X',
	'a': 't', 't': 'a', 'c': 'g', 'g': 'c', 'n': 'n', 'x': 'x',
}

// RevComp returns the reverse complement of the given DNA sequence. Bases
// without a defined complement are passed through unchanged.
func RevComp(s string) string {
	b := []byte(s)

	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}

	for i, c := range b {
		if comp, ok := complements[c]; ok {
			b[i] = comp
		}
	}

	return string(b)
}

// Read is a single FASTQ record.
type Read struct {
	ID       string
	Sequence string
	Quality  string
}

// Qualities returns the Phred-scaled base qualities decoded from the quality
// string.
func (r *Read) Qualities() []int {
	quals := make([]int, len(r.Quality))

	for i := range r.Quality {
		quals[i] = int(r.Quality[i]) - qualityOffset
	}

	return quals
}

// MinQuality returns the lowest base quality in the read, or 0 for an empty
// read.
func (r *Read) MinQuality() int {
	if len(r.Quality) == 0 {
		return 0
	}

	minQ := int(r.Quality[0]) - qualityOffset

	for i := 1; i < len(r.Quality); i++ {
		if q := int(r.Quality[i]) - qualityOffset; q < minQ {
			minQ = q
		}
	}

	return minQ
}

// AvgQuality returns the mean base quality of the read, or 0 for an empty
// read.
func (r *Read) AvgQuality() float64 {
	if len(r.Quality) == 0 {
		return 0
	}

	sum := 0

	for i := range r.Quality {
		sum += int(r.Quality[i]) - qualityOffset
	}

	return float64(sum) / float64(len(r.Quality))
}

// NCount returns the number of N bases in the read.
func (r *Read) NCount() int {
	return strings.Count(strings.ToUpper(r.Sequence), "N")
}

// Trim reduces the read to length bases starting at the 1-based position
// start. A start of 0 or 1 trims nothing from the front; a length of 0 keeps
// everything to the end of the read.
func (r *Read) Trim(start, length int) {
	if start < 1 {
		start = 1
	}

	if start > len(r.Sequence) {
		r.Sequence = ""
		r.Quality = ""

		return
	}

	end := len(r.Sequence)
	if length > 0 && start-1+length < end {
		end = start - 1 + length
	}

	r.Sequence = r.Sequence[start-1 : end]
	r.Quality = r.Quality[start-1 : end]
}

// RevComp reverse-complements the read sequence and reverses the quality
// string to match.
func (r *Read) RevComp() {
	r.Sequence = RevComp(r.Sequence)

	q := []byte(r.Quality)
	for i, j := 0, len(q)-1; i < j; i, j = i+1, j-1 {
		q[i], q[j] = q[j], q[i]
	}

	r.Quality = string(q)
}

// Open opens a possibly compressed (.gz or .bz2) text file for reading.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()

			return nil, err
		}

		return &decompressedFile{Reader: gz, file: f, closer: gz}, nil
	case ".bz2":
		return &decompressedFile{Reader: bzip2.NewReader(f), file: f}, nil
	default:
		return f, nil
	}
}

type decompressedFile struct {
	io.Reader
	file   *os.File
	closer io.Closer
}

func (d *decompressedFile) Close() error {
	if d.closer != nil {
		d.closer.Close()
	}

	return d.file.Close()
}

// Reader streams FASTQ records from a plain or compressed file.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReader opens the FASTQ file at the given path, transparently handling
// .gz and .bz2 compression.
func NewReader(path string) (*Reader, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}

	r := newReader(rc)
	r.closer = rc

	return r, nil
}

func newReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	return &Reader{scanner: scanner}
}

// Next returns the next read in the file. It returns io.EOF once the file is
// exhausted, and ErrMalformedRecord for records that do not follow the 4-line
// FASTQ format; callers may skip such records and continue.
func (r *Reader) Next() (*Read, error) {
	var lines [recordLines]string

	for i := 0; i < recordLines; i++ {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}

			if i == 0 {
				return nil, io.EOF
			}

			return nil, ErrMalformedRecord
		}

		lines[i] = r.scanner.Text()
	}

	if !strings.HasPrefix(lines[0], "@") || !strings.HasPrefix(lines[2], "+") ||
		len(lines[1]) != len(lines[3]) || len(lines[1]) == 0 {
		return nil, ErrMalformedRecord
	}

	return &Read{
		ID:       strings.TrimPrefix(strings.Fields(lines[0])[0], "@"),
		Sequence: lines[1],
		Quality:  lines[3],
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

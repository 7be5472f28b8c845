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

package store

import (
	"sort"
	"strconv"
	"strings"
)

const (
	valueSeparator = ","
	textColsPrefix = "text:"
)

// Row is one element's entry in a Table: either a series of float values (one
// per column, NaN for missing) or, for text tables, a single string value.
type Row struct {
	Element string
	Values  []float64
	Text    string
}

// Table is an in-memory element table. Columns names the value columns; Text
// marks tables whose rows carry one string value (such as a barcode map)
// instead of floats.
type Table struct {
	Columns []string
	Text    bool
	Rows    []Row
}

// NewTable returns an empty table with the given value columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// NewTextTable returns an empty single-string-column table.
func NewTextTable(column string) *Table {
	return &Table{Columns: []string{column}, Text: true}
}

// Column returns the index of the named value column, and whether it exists.
func (t *Table) Column(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}

	return 0, false
}

// Add appends a row of float values to the table.
func (t *Table) Add(element string, values ...float64) {
	t.Rows = append(t.Rows, Row{Element: element, Values: values})
}

// AddText appends a text row to the table.
func (t *Table) AddText(element, text string) {
	t.Rows = append(t.Rows, Row{Element: element, Text: text})
}

// Sort orders rows by element key for deterministic output.
func (t *Table) Sort() {
	sort.Slice(t.Rows, func(i, j int) bool {
		return t.Rows[i].Element < t.Rows[j].Element
	})
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Get returns the row for the given element, and whether it exists.
func (t *Table) Get(element string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Element == element {
			return r, true
		}
	}

	return Row{}, false
}

// schema encodes the column set for the table metadata row; text tables are
// distinguished so schema mismatches between text and float tables are
// caught on append.
func (t *Table) schema() string {
	s := strings.Join(t.Columns, valueSeparator)
	if t.Text {
		s = textColsPrefix + s
	}

	return s
}

func parseSchema(s string) (columns []string, text bool) {
	if strings.HasPrefix(s, textColsPrefix) {
		text = true
		s = strings.TrimPrefix(s, textColsPrefix)
	}

	return strings.Split(s, valueSeparator), text
}

func encodeRow(text bool, r Row) string {
	if text {
		return r.Text
	}

	parts := make([]string, len(r.Values))

	for i, v := range r.Values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}

	return strings.Join(parts, valueSeparator)
}

func decodeRow(text bool, element, encoded string) (Row, error) {
	if text {
		return Row{Element: element, Text: encoded}, nil
	}

	parts := strings.Split(encoded, valueSeparator)
	values := make([]float64, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Row{}, err
		}

		values[i] = v
	}

	return Row{Element: element, Values: values}, nil
}

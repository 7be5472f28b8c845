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

// RejectReason identifies which filter a read failed.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectMinQuality RejectReason = "min quality"
	RejectAvgQuality RejectReason = "avg quality"
	RejectMaxN       RejectReason = "max N"
)

// Filter holds read-level quality gating thresholds. Zero-valued thresholds
// disable the corresponding check, except MaxNCount where a negative value
// disables the check (0 rejects any read containing an N).
type Filter struct {
	MinQuality    int
	MinAvgQuality float64
	MaxNCount     int
}

// NewFilter returns a Filter with all checks disabled.
func NewFilter() Filter {
	return Filter{MaxNCount: -1}
}

// Check applies the configured filters to the read, returning false and the
// reason for the first filter the read fails.
func (f *Filter) Check(r *Read) (bool, RejectReason) {
	if f.MinQuality > 0 && r.MinQuality() < f.MinQuality {
		return false, RejectMinQuality
	}

	if f.MinAvgQuality > 0 && r.AvgQuality() < f.MinAvgQuality {
		return false, RejectAvgQuality
	}

	if f.MaxNCount >= 0 && r.NCount() > f.MaxNCount {
		return false, RejectMaxN
	}

	return true, RejectNone
}

// Reasons lists all reject reasons in reporting order.
func Reasons() []RejectReason {
	return []RejectReason{RejectMinQuality, RejectAvgQuality, RejectMaxN}
}

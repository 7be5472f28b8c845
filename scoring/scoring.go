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

// package scoring turns per-element count-over-time series into functional
// scores with standard errors. Strategies are pluggable: built-in engines
// register themselves at init time and user-supplied engines can register
// through the same mechanism.

package scoring

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/wtsi-hgi/mavescore/store"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownMethod        = Error("unknown scoring method")
	ErrUnknownNormalization = Error("unknown normalization method")
	ErrInsufficientData     = Error("fewer than two timepoints have nonzero counts")
	ErrNoWildTypeCounts     = Error("wild type normalization requires wild type counts")
	ErrNoCounts             = Error("counts table missing for label")

	// NormWildType normalizes counts by the wild type element's counts.
	NormWildType = "wt"
	// NormComplete normalizes by total library size over complete cases.
	NormComplete = "complete"
	// NormFull normalizes by total library size including filtered elements.
	NormFull = "full"

	// pseudocount added to every count before taking logs.
	pseudocount = 0.5

	minScorableTimepoints = 2
)

// Options configures a scoring engine. The normalization method affects all
// strategies identically.
type Options struct {
	Normalization string
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	switch o.Normalization {
	case NormWildType, NormComplete, NormFull:
		return nil
	default:
		return ErrUnknownNormalization
	}
}

// Engine is a scoring strategy. Score reads main/<label>/counts under the
// scoped store for each label and writes main/<label>/scores, except for
// engines that declare they produce no scores. Engines must declare a name,
// author and version.
type Engine interface {
	Name() string
	Author() string
	Version() string

	// ProducesScores reports whether a scores table is expected after Score
	// returns; its absence is then a fatal error for the scored object.
	ProducesScores() bool

	Score(ctx context.Context, st *store.Scoped, labels []string, timepoints []int) error
}

// Factory builds an Engine from Options.
type Factory func(Options) Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a scoring method available by name, replacing any existing
// registration.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = f
}

// New returns the named scoring engine configured with the given options.
func New(name string, opts Options) (Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrUnknownMethod
	}

	return f(opts), nil
}

// Known reports whether a scoring method with the given name is registered.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	_, ok := registry[name]

	return ok
}

// Methods returns the registered scoring method names, sorted.
func Methods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// IsRegression reports whether the named method fits a regression across
// timepoints, and so needs more than two of them to be meaningful.
func IsRegression(name string) bool {
	return name == "WLS" || name == "OLS"
}

func init() {
	Register("ratios", func(o Options) Engine { return &ratiosEngine{opts: o} })
	Register("simple", func(o Options) Engine { return &simpleEngine{opts: o} })
	Register("WLS", func(o Options) Engine { return &regressionEngine{opts: o, weighted: true} })
	Register("OLS", func(o Options) Engine { return &regressionEngine{opts: o} })
	Register("counts", func(o Options) Engine { return &countsEngine{} })
}

// TimepointColumn returns the counts column name for a timepoint.
func TimepointColumn(tp int) string {
	return "c_" + strconv.Itoa(tp)
}

// nonzeroTimepoints counts how many of the row's values are positive counts.
func nonzeroTimepoints(values []float64) int {
	n := 0

	for _, v := range values {
		if v > 0 {
			n++
		}
	}

	return n
}

// CheckSeries returns ErrInsufficientData when an element's count series has
// too few nonzero timepoints to be scored by any strategy. Engines record
// such elements as missing scores rather than failing the run.
func CheckSeries(values []float64) error {
	if nonzeroTimepoints(values) < minScorableTimepoints {
		return ErrInsufficientData
	}

	return nil
}

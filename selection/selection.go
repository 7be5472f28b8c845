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

// package selection implements a selection: an ordered series of sequencing
// libraries of the same population sampled at successive timepoints. It
// counts the libraries, combines their per-timepoint counts into
// count-over-time tables and hands those to a scoring engine.

package selection

import (
	"sort"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/mavescore/scoring"
	"github.com/wtsi-hgi/mavescore/seqlib"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoLibraries           = Error("selection has no libraries")
	ErrDuplicateLibrary      = Error("selection has two libraries with the same name")
	ErrMissingInputTimepoint = Error("selection has no timepoint 0 input library")
	ErrTooFewTimepoints      = Error("selection needs at least two timepoints")
	ErrRegressionTimepoints  = Error("regression scoring needs at least three timepoints")
	ErrNoCommonLabels        = Error("libraries count no element type in common")
	ErrScoresMissing         = Error("scoring engine produced no scores table")
	ErrWrongState            = Error("selection is not in a runnable state")
)

// State tracks a selection's progress through its run.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateCounting      State = "counting"
	StateCombining     State = "combining"
	StateScoring       State = "scoring"
	StateScored        State = "scored"
	StateFailed        State = "failed"
)

// Selection is a timepoint-ordered set of sequencing libraries to be scored
// together.
type Selection struct {
	name       string
	libs       []*seqlib.SeqLib
	method     string
	opts       scoring.Options
	labels     []string
	timepoints []int
	logger     log15.Logger
	state      State
}

// New validates that the libraries form a scoreable series and returns a
// Selection ready to Run. The input library at timepoint 0 is mandatory, as
// are at least two timepoints overall and three when the scoring method fits
// a regression.
func New(name string, libs []*seqlib.SeqLib, method string,
	opts scoring.Options) (*Selection, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if !scoring.Known(method) {
		return nil, scoring.ErrUnknownMethod
	}

	if len(libs) == 0 {
		return nil, ErrNoLibraries
	}

	timepoints, err := checkLibraries(libs, method)
	if err != nil {
		return nil, err
	}

	labels, err := sharedLabels(libs)
	if err != nil {
		return nil, err
	}

	return &Selection{
		name:       name,
		libs:       libs,
		method:     method,
		opts:       opts,
		labels:     labels,
		timepoints: timepoints,
		logger:     log15.New("selection", name),
		state:      StateUninitialized,
	}, nil
}

// checkLibraries ensures library names are unique and the timepoint series is
// usable, returning the sorted distinct timepoints.
func checkLibraries(libs []*seqlib.SeqLib, method string) ([]int, error) {
	names := make(map[string]bool)
	seen := make(map[int]bool)

	for _, lib := range libs {
		if names[lib.Name()] {
			return nil, ErrDuplicateLibrary
		}

		names[lib.Name()] = true
		seen[lib.Timepoint()] = true
	}

	if !seen[0] {
		return nil, ErrMissingInputTimepoint
	}

	timepoints := make([]int, 0, len(seen))
	for tp := range seen {
		timepoints = append(timepoints, tp)
	}

	sort.Ints(timepoints)

	if len(timepoints) < 2 {
		return nil, ErrTooFewTimepoints
	}

	if scoring.IsRegression(method) && len(timepoints) < 3 {
		return nil, ErrRegressionTimepoints
	}

	return timepoints, nil
}

// sharedLabels returns, in reporting order, the element type labels counted
// by every library in the selection; only those can be combined across
// timepoints.
func sharedLabels(libs []*seqlib.SeqLib) ([]string, error) {
	counts := make(map[string]int)

	for _, lib := range libs {
		for _, label := range lib.Labels() {
			counts[label]++
		}
	}

	var shared []string

	for _, label := range []string{seqlib.LabelBarcodes, seqlib.LabelIdentifiers,
		seqlib.LabelVariants, seqlib.LabelSynonymous} {
		if counts[label] == len(libs) {
			shared = append(shared, label)
		}
	}

	if len(shared) == 0 {
		return nil, ErrNoCommonLabels
	}

	return shared, nil
}

// Name returns the selection name, used as its store path component.
func (s *Selection) Name() string {
	return s.name
}

// Labels returns the element type labels shared by all libraries, in
// reporting order.
func (s *Selection) Labels() []string {
	return s.labels
}

// Timepoints returns the sorted distinct timepoints of the libraries.
func (s *Selection) Timepoints() []int {
	return s.timepoints
}

// Libraries returns the selection's libraries.
func (s *Selection) Libraries() []*seqlib.SeqLib {
	return s.libs
}

// State returns the selection's current run state.
func (s *Selection) State() State {
	return s.state
}

// Method returns the name of the configured scoring method.
func (s *Selection) Method() string {
	return s.method
}

// ProducesScores reports whether the configured scoring method writes scores
// tables, and so whether this selection can contribute to replicate
// combination.
func (s *Selection) ProducesScores() bool {
	engine, err := scoring.New(s.method, s.opts)
	if err != nil {
		return false
	}

	return engine.ProducesScores()
}

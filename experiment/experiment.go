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

// package experiment implements the top of the object tree: an experiment
// holds conditions, a condition holds replicate selections. The experiment
// runs all selections concurrently and then combines each condition's
// replicate scores into a single score and standard error per element.

package experiment

import (
	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/mavescore/selection"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoConditions       = Error("experiment has no conditions")
	ErrNoSelections       = Error("condition has no selections")
	ErrDuplicateCondition = Error("experiment has two conditions with the same name")
	ErrDuplicateSelection = Error("condition has two selections with the same name")
	ErrReservedName       = Error("condition or selection name is reserved")
	ErrBadMinSelections   = Error("minimum selections must be at least one")
	ErrUnknownCombiner    = Error("unknown score combining method")

	// CombineInvVar combines replicate scores by their inverse-variance
	// weighted mean; elements whose standard errors are unavailable fall back
	// to the unweighted mean.
	CombineInvVar = "invvar"
	// CombineMean combines replicate scores by their unweighted mean, with
	// the standard error of the mean.
	CombineMean = "mean"
)

// Condition groups the replicate selections of one experimental condition.
// It carries no behaviour of its own; combination happens per condition in
// the experiment's run.
type Condition struct {
	Name       string
	Selections []*selection.Selection
}

// Options configures an experiment.
type Options struct {
	Name string

	// MinSelections is how many of a condition's selections an element must
	// be scored in to enter the combined scores table.
	MinSelections int

	// Combiner is the replicate combining method, CombineInvVar or
	// CombineMean.
	Combiner string
}

// Experiment runs and combines a tree of conditions and selections.
type Experiment struct {
	opts       Options
	conditions []*Condition
	logger     log15.Logger
}

// New validates the tree shape and returns an Experiment ready to Run.
func New(opts Options, conditions []*Condition) (*Experiment, error) {
	if err := validate(opts, conditions); err != nil {
		return nil, err
	}

	return &Experiment{
		opts:       opts,
		conditions: conditions,
		logger:     log15.New("experiment", opts.Name),
	}, nil
}

func validate(opts Options, conditions []*Condition) error {
	if opts.MinSelections < 1 {
		return ErrBadMinSelections
	}

	if opts.Combiner != CombineInvVar && opts.Combiner != CombineMean {
		return ErrUnknownCombiner
	}

	if len(conditions) == 0 {
		return ErrNoConditions
	}

	condNames := make(map[string]bool)

	for _, cond := range conditions {
		if condNames[cond.Name] {
			return ErrDuplicateCondition
		}

		condNames[cond.Name] = true

		if err := validateCondition(cond); err != nil {
			return err
		}
	}

	return nil
}

func validateCondition(cond *Condition) error {
	if cond.Name == "main" || cond.Name == "raw" {
		return ErrReservedName
	}

	if len(cond.Selections) == 0 {
		return ErrNoSelections
	}

	selNames := make(map[string]bool)

	for _, sel := range cond.Selections {
		if sel.Name() == "main" || sel.Name() == "raw" {
			return ErrReservedName
		}

		if selNames[sel.Name()] {
			return ErrDuplicateSelection
		}

		selNames[sel.Name()] = true
	}

	return nil
}

// Name returns the experiment name, used as its store path component.
func (e *Experiment) Name() string {
	return e.opts.Name
}

// Conditions returns the experiment's conditions.
func (e *Experiment) Conditions() []*Condition {
	return e.conditions
}

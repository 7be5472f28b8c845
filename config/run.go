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

package config

import (
	"encoding/json"
	"os"

	"github.com/wtsi-hgi/mavescore/experiment"
	"github.com/wtsi-hgi/mavescore/scoring"
	"github.com/wtsi-hgi/mavescore/selection"
	"github.com/wtsi-hgi/mavescore/seqlib"
	"github.com/wtsi-hgi/mavescore/sequence"
)

const (
	ErrMissingName   = Error("every object in the run tree needs a name")
	ErrDuplicateName = Error("duplicate name in the run tree")

	defaultMethod        = "WLS"
	defaultNormalization = scoring.NormWildType
	defaultCombiner      = experiment.CombineInvVar
	defaultMinSelections = 1
)

// RunConfig is the JSON description of one complete run: the experiment and
// its tree of conditions, selections and libraries, plus the scoring choices
// applied to every selection.
type RunConfig struct {
	Name          string            `json:"name"`
	Method        string            `json:"method"`
	Normalization string            `json:"normalization"`
	MinSelections int               `json:"min_selections"`
	Combiner      string            `json:"combiner"`
	Conditions    []ConditionConfig `json:"conditions"`
}

type ConditionConfig struct {
	Name       string            `json:"name"`
	Selections []SelectionConfig `json:"selections"`
}

type SelectionConfig struct {
	Name      string          `json:"name"`
	Libraries []LibraryConfig `json:"libraries"`
}

type LibraryConfig struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Timepoint int    `json:"timepoint"`

	Reads        string `json:"reads,omitempty"`
	ReverseReads string `json:"reverse_reads,omitempty"`
	CountsFile   string `json:"counts_file,omitempty"`

	Revcomp    bool `json:"revcomp,omitempty"`
	TrimStart  int  `json:"trim_start,omitempty"`
	TrimLength int  `json:"trim_length,omitempty"`

	MinQuality    int     `json:"min_quality,omitempty"`
	MinAvgQuality float64 `json:"min_avg_quality,omitempty"`
	MaxN          *int    `json:"max_n,omitempty"`

	WildType     *WildTypeConfig `json:"wild_type,omitempty"`
	MaxMutations int             `json:"max_mutations,omitempty"`
	UseAligner   bool            `json:"use_aligner,omitempty"`

	BarcodeMap string         `json:"barcode_map,omitempty"`
	MinCounts  map[string]int `json:"min_counts,omitempty"`

	Overlap *OverlapConfig `json:"overlap,omitempty"`
}

type WildTypeConfig struct {
	Sequence string `json:"sequence"`
	Offset   int    `json:"offset,omitempty"`
	Coding   bool   `json:"coding,omitempty"`
}

type OverlapConfig struct {
	ForwardStart        int  `json:"forward_start"`
	Length              int  `json:"length"`
	MaxMismatches       int  `json:"max_mismatches,omitempty"`
	DiscardUnresolvable bool `json:"discard_unresolvable,omitempty"`
}

// LoadRun parses the JSON run tree at path, applying defaults for the
// scoring choices. Unknown keys are rejected so typos fail loudly before any
// data is touched.
func LoadRun(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	rc := &RunConfig{}
	if err := dec.Decode(rc); err != nil {
		return nil, err
	}

	rc.applyDefaults()

	if err := rc.checkNames(); err != nil {
		return nil, err
	}

	return rc, nil
}

func (rc *RunConfig) applyDefaults() {
	if rc.Method == "" {
		rc.Method = defaultMethod
	}

	if rc.Normalization == "" {
		rc.Normalization = defaultNormalization
	}

	if rc.Combiner == "" {
		rc.Combiner = defaultCombiner
	}

	if rc.MinSelections == 0 {
		rc.MinSelections = defaultMinSelections
	}
}

func (rc *RunConfig) checkNames() error {
	if rc.Name == "" {
		return ErrMissingName
	}

	conds := make(map[string]bool)

	for _, cond := range rc.Conditions {
		if err := checkName(cond.Name, conds); err != nil {
			return err
		}

		sels := make(map[string]bool)

		for _, sel := range cond.Selections {
			if err := checkName(sel.Name, sels); err != nil {
				return err
			}

			libs := make(map[string]bool)

			for _, lib := range sel.Libraries {
				if err := checkName(lib.Name, libs); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func checkName(name string, seen map[string]bool) error {
	if name == "" {
		return ErrMissingName
	}

	if seen[name] {
		return ErrDuplicateName
	}

	seen[name] = true

	return nil
}

// Build constructs the validated experiment tree the config describes. Every
// layer revalidates its own invariants; the first problem anywhere in the
// tree is returned before any sequencing data is read.
func (rc *RunConfig) Build() (*experiment.Experiment, error) {
	conditions := make([]*experiment.Condition, 0, len(rc.Conditions))

	for _, condCfg := range rc.Conditions {
		cond := &experiment.Condition{Name: condCfg.Name}

		for _, selCfg := range condCfg.Selections {
			sel, err := rc.buildSelection(selCfg)
			if err != nil {
				return nil, err
			}

			cond.Selections = append(cond.Selections, sel)
		}

		conditions = append(conditions, cond)
	}

	return experiment.New(experiment.Options{
		Name:          rc.Name,
		MinSelections: rc.MinSelections,
		Combiner:      rc.Combiner,
	}, conditions)
}

func (rc *RunConfig) buildSelection(selCfg SelectionConfig) (*selection.Selection, error) {
	libs := make([]*seqlib.SeqLib, 0, len(selCfg.Libraries))

	for _, libCfg := range selCfg.Libraries {
		lib, err := buildLibrary(libCfg)
		if err != nil {
			return nil, err
		}

		libs = append(libs, lib)
	}

	return selection.New(selCfg.Name, libs, rc.Method,
		scoring.Options{Normalization: rc.Normalization})
}

func buildLibrary(cfg LibraryConfig) (*seqlib.SeqLib, error) {
	libType, err := seqlib.StringToType(cfg.Type)
	if err != nil {
		return nil, err
	}

	opts := seqlib.Options{
		Name:           cfg.Name,
		Type:           libType,
		Timepoint:      cfg.Timepoint,
		Reads:          cfg.Reads,
		ReverseReads:   cfg.ReverseReads,
		CountsFile:     cfg.CountsFile,
		Revcomp:        cfg.Revcomp,
		TrimStart:      cfg.TrimStart,
		TrimLength:     cfg.TrimLength,
		Filter:         buildFilter(cfg),
		MaxMutations:   cfg.MaxMutations,
		UseAligner:     cfg.UseAligner,
		BarcodeMapFile: cfg.BarcodeMap,
		MinCounts:      cfg.MinCounts,
	}

	if cfg.WildType != nil {
		wt, err := sequence.NewWildType(cfg.WildType.Sequence, cfg.WildType.Offset,
			cfg.WildType.Coding)
		if err != nil {
			return nil, err
		}

		opts.WildType = wt
	}

	if cfg.Overlap != nil {
		opts.Overlap = seqlib.OverlapOptions{
			ForwardStart:        cfg.Overlap.ForwardStart,
			Length:              cfg.Overlap.Length,
			MaxMismatches:       cfg.Overlap.MaxMismatches,
			DiscardUnresolvable: cfg.Overlap.DiscardUnresolvable,
		}
	}

	return seqlib.New(opts)
}

func buildFilter(cfg LibraryConfig) sequence.Filter {
	filter := sequence.NewFilter()
	filter.MinQuality = cfg.MinQuality
	filter.MinAvgQuality = cfg.MinAvgQuality

	if cfg.MaxN != nil {
		filter.MaxNCount = *cfg.MaxN
	}

	return filter
}

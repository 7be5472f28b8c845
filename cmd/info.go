/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
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

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/mavescore/experiment"
	"github.com/wtsi-hgi/mavescore/selection"
)

// infoCmd represents the info command.
var infoCmd = &cobra.Command{
	Use:   "info <config.json>",
	Short: "Describe an experiment without running it.",
	Long: `Describe an experiment without running it.

Given the path to a JSON run configuration file, this validates the whole
experiment tree (loading barcode maps and wild type sequences as a real run
would) and prints the tree and the store paths a run would write, without
reading any sequencing data or touching the store.

Any configuration problem a run would fail on is reported here instead.
`,
	Run: func(_ *cobra.Command, args []string) {
		if len(args) != 1 {
			die("%s", ErrConfigRequired.Error())
		}

		exp, err := loadExperiment(args[0])
		if err != nil {
			die("%s", err.Error())
		}

		printExperiment(exp)
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)
}

func printExperiment(exp *experiment.Experiment) {
	cliPrint("experiment %s\n", exp.Name())

	for _, cond := range exp.Conditions() {
		cliPrint("  condition %s (%d selections)\n", cond.Name, len(cond.Selections))

		for _, sel := range cond.Selections {
			printSelection(exp.Name(), cond.Name, sel)
		}
	}
}

func printSelection(expName, condName string, sel *selection.Selection) {
	cliPrint("    selection %s: method %s, timepoints %s, labels %s\n",
		sel.Name(), sel.Method(), intsToString(sel.Timepoints()),
		strings.Join(sel.Labels(), ","))

	base := expName + "/" + condName + "/" + sel.Name()

	for _, lib := range sel.Libraries() {
		cliPrint("      library %s: type %s, timepoint %d\n",
			lib.Name(), lib.Type(), lib.Timepoint())
	}

	for _, label := range sel.Labels() {
		cliPrint("      will write %s/main/%s/{counts,counts_unfiltered", base, label)

		if sel.ProducesScores() {
			cliPrint(",scores")
		}

		cliPrint("}\n")
	}
}

func intsToString(ints []int) string {
	parts := make([]string, len(ints))
	for i, n := range ints {
		parts[i] = fmt.Sprintf("%d", n)
	}

	return strings.Join(parts, ",")
}

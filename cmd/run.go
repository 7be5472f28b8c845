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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/mavescore/config"
	"github.com/wtsi-hgi/mavescore/experiment"
	"github.com/wtsi-hgi/mavescore/seqlib"
)

const ErrConfigRequired = Error("the path to a run configuration JSON file is required")

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run <config.json>",
	Short: "Run an experiment.",
	Long: `Run an experiment.

Given the path to a JSON run configuration file, this counts every library of
every selection, combines and scores the counts, and combines replicate
selection scores per condition, persisting all tables in the configured
store.

An example command line could look like this:
$ mavescore run experiment.json

The store location comes from MAVESCORE_STORE_DRIVER and MAVESCORE_STORE_DSN
(a .env file in the working directory is read automatically); the default is
an sqlite database file called mavescore.db in the working directory.

A failed selection does not stop its siblings; its subtree is simply absent
from the store and the failure is reported at the end.
`,
	Run: func(_ *cobra.Command, args []string) {
		if len(args) != 1 {
			die("%s", ErrConfigRequired.Error())
		}

		c, err := config.FromEnv()
		if err != nil {
			die("%s", err.Error())
		}

		setLogLevel(c.LogLevel)

		exp, err := loadExperiment(args[0])
		if err != nil {
			die("%s", err.Error())
		}

		st, err := c.OpenStore()
		if err != nil {
			die("%s", err.Error())
		}

		defer st.Close()

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		info("running experiment %s", exp.Name())

		err = exp.Run(ctx, st, exp.Name())

		reportStats(exp)

		if err != nil {
			die("experiment failed: %s", err.Error())
		}

		info("experiment %s complete", exp.Name())
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
}

func loadExperiment(path string) (*experiment.Experiment, error) {
	rc, err := config.LoadRun(path)
	if err != nil {
		return nil, err
	}

	return rc.Build()
}

// reportStats logs the read-level outcomes of every library that counted
// anything, so dropped data is visible without digging in the store.
func reportStats(exp *experiment.Experiment) {
	for _, cond := range exp.Conditions() {
		for _, sel := range cond.Selections {
			for _, lib := range sel.Libraries() {
				logLibStats(cond.Name, sel.Name(), lib)
			}
		}
	}
}

func logLibStats(condName, selName string, lib *seqlib.SeqLib) {
	stats := lib.Stats()
	if stats.TotalReads == 0 {
		return
	}

	info("library %s/%s/%s: %d reads, %d accepted, %d malformed, "+
		"%d unmapped barcodes, %d too many mutations, %d unresolvable, %d merge failures",
		condName, selName, lib.Name(), stats.TotalReads, stats.Accepted(),
		stats.Malformed, stats.UnmappedBarcodes, stats.TooManyMutations,
		stats.Unresolvable, stats.MergeFailures)
}

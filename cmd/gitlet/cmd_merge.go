package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitlet/pkg/diff"
	"github.com/odvcencio/gitlet/pkg/repo"
)

var errMergeConflicts = errors.New("automatic merge failed; fix conflicts and then commit the result")

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <ref>",
		Short: "Merge a branch or commit into HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			report, err := r.Merge(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch report.Outcome {
			case repo.MergeAlreadyUpToDate:
				fmt.Fprintln(out, "Already up to date.")
				return nil
			case repo.MergeFastForward:
				fmt.Fprintf(out, "Updating %s..%s\nFast-forward\n", report.Ours.Short(), report.Theirs.Short())
			}

			fmt.Fprint(out, diff.FormatNameStatus(report.Changes))

			switch report.Outcome {
			case repo.MergeClean:
				fmt.Fprintf(out, "Merge made by the three-way strategy: %s\n", report.Commit.Short())
			case repo.MergeConflicted:
				for _, p := range report.Conflicts {
					fmt.Fprintf(out, "CONFLICT (content): Merge conflict in %s\n", p)
				}
				return errMergeConflicts
			}
			return nil
		},
	}
}

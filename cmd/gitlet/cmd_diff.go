package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitlet/pkg/diff"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [ref1 [ref2]]",
		Short: "List paths that differ between two states",
		Long: "With no refs, compare HEAD against the working copy of tracked files.\n" +
			"With one ref, compare it against the working copy. With two, compare their trees.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			var ref1, ref2 string
			if len(args) > 0 {
				ref1 = args[0]
			}
			if len(args) > 1 {
				ref2 = args[1]
			}

			changes, err := r.Diff(ref1, ref2)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff.FormatNameStatus(changes))
			return nil
		},
	}
}

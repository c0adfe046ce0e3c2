package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <ref>",
		Short: "Switch HEAD, the index and the working copy to a branch or commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			r, err := openRepo(cmd)
			if err != nil {
				return err
			}

			if createBranch {
				if _, err := r.CreateBranchAt(target, ""); err != nil {
					return err
				}
			}

			res, err := r.Checkout(target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.AlreadyOn && res.Branch != "":
				fmt.Fprintf(out, "Already on '%s'\n", res.Branch)
			case res.AlreadyOn:
				fmt.Fprintf(out, "HEAD is already at %s\n", res.Target.Short())
			case createBranch:
				fmt.Fprintf(out, "Switched to a new branch '%s'\n", res.Branch)
			case res.Branch != "":
				fmt.Fprintf(out, "Switched to branch '%s'\n", res.Branch)
			default:
				fmt.Fprintf(out, "HEAD is now at %s\n", res.Target.Short())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create the branch at HEAD and switch to it")

	return cmd
}

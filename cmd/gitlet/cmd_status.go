package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitlet/pkg/diff"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			st, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case st.Branch == "":
				fmt.Fprintf(out, "HEAD detached at %s\n", st.Head.Short())
			case st.Head == "":
				fmt.Fprintf(out, "on %s (no commits yet)\n", st.Branch)
			default:
				fmt.Fprintf(out, "on %s\n", st.Branch)
			}
			if st.Merging {
				fmt.Fprintln(out, "merging (commit to conclude)")
			}

			if len(st.Conflicted) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "conflicts:")
				for _, p := range st.Conflicted {
					fmt.Fprintf(out, "  U %s\n", p)
				}
			}
			printChanges(out, "staged:", st.Staged)
			printChanges(out, "unstaged:", st.Unstaged)
			if len(st.Untracked) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "untracked:")
				for _, p := range st.Untracked {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}
			if st.Clean() {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
			}
			return nil
		},
	}
}

func printChanges(out io.Writer, title string, changes []diff.Change) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, c := range changes {
		fmt.Fprintf(out, "  %s %s\n", c.Type.Label(), c.Path)
	}
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if oneline {
					fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), firstLine(e.Message))
					continue
				}
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				if len(e.Parents) > 1 {
					parents := make([]string, len(e.Parents))
					for i, p := range e.Parents {
						parents[i] = p.Short()
					}
					fmt.Fprintf(out, "Merge: %s\n", strings.Join(parents, " "))
				}
				fmt.Fprintf(out, "Author: %s\n", e.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(e.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")

	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

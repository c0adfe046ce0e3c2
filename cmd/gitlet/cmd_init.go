package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitlet/pkg/repo"
)

func newInitCmd() *cobra.Command {
	var opts repo.InitOptions

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty gitlet repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			r, err := repo.Init(fsys, abs, opts)
			if err != nil {
				return err
			}

			kind := "empty"
			if opts.Bare {
				kind = "empty bare"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s gitlet repository in %s%c\n", kind, r.GitDir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Bare, "bare", false, "create a repository without a working copy")
	cmd.Flags().StringVar(&opts.ObjectFormat, "object-format", "", "object hash: sha256 (default) or blake2b")
	cmd.Flags().StringVar(&opts.Compression, "compression", "", "loose object encoding: zstd (default) or none")

	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitlet/pkg/repo"
)

const version = "gitlet 0.1.0-dev"

// fsys is the filesystem every command runs against.
var fsys afero.Fs = afero.NewOsFs()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gitlet",
		Short:         "A small content-addressed version control system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "log repository operations to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// newLogger returns a debug-level text logger on stderr when --verbose is
// set and a discarding logger otherwise.
func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.New()
	logger.Out = io.Discard
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		logger.Out = cmd.ErrOrStderr()
		logger.Level = log.DebugLevel
		logger.Formatter = &log.TextFormatter{DisableTimestamp: true}
	}
	return logger
}

// openRepo opens the repository containing the current directory.
func openRepo(cmd *cobra.Command) (*repo.Repo, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}
	r, err := repo.Open(fsys, wd)
	if err != nil {
		return nil, err
	}
	r.Logger = newLogger(cmd)
	return r, nil
}

// absPaths anchors command-line paths at the current directory so they
// mean the same thing from any subdirectory of the working copy.
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve path %q: %w", a, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// Package main is the entry point for the sfretrieve CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/completion"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/configcmd"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/initcmd"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/metadatacmd"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/retrievecmd"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
)

// Exit codes
const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()

	if err != nil {
		report(os.Stderr, err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

// report prints err unless it was already shown while the command ran.
func report(w io.Writer, err error) {
	switch {
	case clierrors.IsReported(err):
	case clierrors.IsUsage(err):
		// Flag parse errors carry detail worth showing above the synopsis
		if err.Error() != clierrors.ErrUsage.Error() {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Usage: "+clierrors.UsageLine)
	default:
		fmt.Fprintln(w, err)
	}
}

func run(ctx context.Context) error {
	rootCmd, _ := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd builds the full command tree. A leading positional naming a
// subcommand selects it; any other positional is ignored by the pipeline.
func newRootCmd() (*cobra.Command, *root.Options) {
	rootCmd, opts := root.NewCmd()

	root.RegisterCommands(rootCmd, opts,
		retrievecmd.Register,
		metadatacmd.Register,
		initcmd.Register,
		configcmd.Register,
		completion.Register,
	)

	return rootCmd, opts
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case clierrors.IsPartialRetrieve(err):
		return exitPartial
	default:
		return exitError
	}
}

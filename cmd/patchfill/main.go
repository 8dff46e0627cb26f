// Command patchfill fills masked regions of images. See "patchfill --help".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/internal/cli"
	pferrors "github.com/illumorae/patchfill/pkg/errors"
)

// Exit codes.
const (
	exitFailure     = 1
	exitInput       = 2   // bad image, mask, options or config
	exitInterrupted = 130 // SIGINT
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		os.Exit(exitInterrupted)
	case pferrors.IsInputError(err):
		fmt.Fprintf(os.Stderr, "patchfill: %s\n", pferrors.UserMessage(err))
		os.Exit(exitInput)
	default:
		fmt.Fprintf(os.Stderr, "patchfill: %v\n", err)
		os.Exit(exitFailure)
	}
}

func run(ctx context.Context) error {
	var verbose bool

	// stdout carries "config show" and completion scripts, so logs use stderr.
	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-level search statistics")

	// The level must be set before the root loads the config file.
	loadConfig := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		return loadConfig(cmd, args)
	}

	return root.ExecuteContext(ctx)
}

// Command fedora3-migrate reorganizes a Fedora Commons 3 repository into a
// flat staged tree and projects that tree into CSV manifests, grounded on
// the original migration tool's two-binary CLI (migrate/main.rs, csv/main.rs)
// collapsed into one cobra root command with three subcommands, following
// the NewRootCmd/globalOptions/PersistentPreRun pattern this CLI is
// structured after.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ndlib/fedora3-migrate/internal/logging"
)

var version = "0.1.0"

type globalOptions struct {
	flagLogLevel  string
	flagLogFormat string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRootCmd builds the fedora3-migrate command tree: migrate, csv, scripts.
func NewRootCmd() *cobra.Command {
	o := globalOptions{}

	cmd := &cobra.Command{
		Use:              "fedora3-migrate",
		Short:            "Migrate a Fedora Commons 3 repository to a staged CSV-projectable tree",
		Version:          version,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRun: o.PreRun,
	}

	cmd.AddGroup(&cobra.Group{ID: "main", Title: "Commands:"})
	cmd.SetCompletionCommandGroupID("main")
	cmd.SetHelpCommandGroupID("main")

	cmd.PersistentFlags().StringVar(&o.flagLogLevel, "loglevel", "info", "Log level")
	cmd.PersistentFlags().StringVar(&o.flagLogFormat, "logformat", "text", "Log format")

	migrateOpts := migrateCommandOptions{global: &o}
	cmd.AddCommand(migrateOpts.NewCommand())

	csvOpts := csvCommandOptions{global: &o}
	cmd.AddCommand(csvOpts.NewCommand())

	scriptsOpts := scriptsCommandOptions{global: &o}
	cmd.AddCommand(scriptsOpts.NewCommand())

	return cmd
}

func (o *globalOptions) PreRun(cmd *cobra.Command, args []string) {
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.ctx, o.cancel = signal.NotifyContext(o.ctx, os.Interrupt)

	if err := logging.Configure(o.flagLogLevel, o.flagLogFormat); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func main() {
	// Go has no global panic hook; a top-level recover here is the idiomatic
	// stand-in for the original's custom panic hook, printing file:line plus
	// message via the structured logger before exiting non-zero.
	defer func() {
		if r := recover(); r != nil {
			_, file, line, _ := runtime.Caller(3)
			logging.Fatal("panic during migration", "panic", r, "file", file, "line", line)
		}
	}()

	if err := NewRootCmd().Execute(); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
}

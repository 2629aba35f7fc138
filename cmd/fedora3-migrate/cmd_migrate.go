package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ndlib/fedora3-migrate/internal/cliutil"
	"github.com/ndlib/fedora3-migrate/internal/orchestrator"
	"github.com/ndlib/fedora3-migrate/internal/progress"
)

type migrateCommandOptions struct {
	global *globalOptions

	Input    string
	Output   string
	Move     bool
	Checksum bool
}

func (o *migrateCommandOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate --input <fedora-home> --output <dir> [flags]",
		Short:   "Reorganize a Fedora 3 home directory into a staged tree",
		GroupID: "main",
		RunE:    o.Run,
	}

	cmd.Flags().StringVar(&o.Input, "input", "", "Fedora 3 home directory (required)")
	cmd.Flags().StringVar(&o.Output, "output", "", "Staged output directory (required)")
	cmd.Flags().BoolVar(&o.Move, "move", false, "Move files instead of copying them")
	cmd.Flags().BoolVar(&o.Checksum, "checksum", false, "Compare file content instead of size/mtime when deciding whether to re-migrate")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (o *migrateCommandOptions) Run(_ *cobra.Command, _ []string) error {
	if err := cliutil.RequireFedoraHome(o.Input); err != nil {
		return err
	}

	reporter := progress.NewSpinner("migrate", 0)
	result, err := orchestrator.RunMigrate(orchestrator.MigrateOptions{
		FedoraHome: o.Input,
		Output:     o.Output,
		Move:       o.Move,
		Checksum:   o.Checksum,
	}, reporter)
	if err != nil {
		return err
	}

	fmt.Printf("Objects: %s\n", result.Objects)
	fmt.Printf("Managed datastreams: %s\n", result.Datastreams)
	fmt.Printf("Inline datastreams: %s\n", result.Inline)
	if len(result.Orphaned) > 0 {
		fmt.Printf("Orphaned datastreams (%d):\n\t%s\n", len(result.Orphaned), strings.Join(result.Orphaned, "\n\t"))
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndlib/fedora3-migrate/internal/cliutil"
	"github.com/ndlib/fedora3-migrate/internal/orchestrator"
	"github.com/ndlib/fedora3-migrate/internal/progress"
)

type scriptsCommandOptions struct {
	global *globalOptions

	Input   string
	Output  string
	Scripts string
	Modules string
	PIDs    []string
}

func (o *scriptsCommandOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scripts --input <staged> --output <dir> --scripts <dir> [flags]",
		Short:   "Run user scripts against a staged tree and write one CSV per script",
		GroupID: "main",
		RunE:    o.Run,
	}

	cmd.Flags().StringVar(&o.Input, "input", "", "Staged tree directory (required)")
	cmd.Flags().StringVar(&o.Output, "output", "", "CSV output directory (required)")
	cmd.Flags().StringVar(&o.Scripts, "scripts", "", "Directory of *.script.js files (required)")
	cmd.Flags().StringVar(&o.Modules, "modules", "", "Directory of *.module.js files importable via require()")
	cmd.Flags().StringSliceVar(&o.PIDs, "pids", nil, "Restrict to these comma-separated PIDs (default: all objects)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("scripts")

	return cmd
}

func (o *scriptsCommandOptions) Run(_ *cobra.Command, _ []string) error {
	if _, _, err := cliutil.RequireStagedHome(o.Input); err != nil {
		return err
	}
	if err := cliutil.RequireDir(o.Scripts); err != nil {
		return err
	}
	if o.Modules != "" {
		if err := cliutil.RequireDir(o.Modules); err != nil {
			return err
		}
	}

	reporter := progress.NewSpinner("scripts", 0)
	err := orchestrator.RunScripts(orchestrator.ScriptsOptions{
		Staged:  o.Input,
		Output:  o.Output,
		Scripts: o.Scripts,
		Modules: o.Modules,
		PIDs:    o.PIDs,
	}, reporter)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote script output CSVs to %s\n", o.Output)
	return nil
}

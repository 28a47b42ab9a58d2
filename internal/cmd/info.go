package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"crewplan/internal/buildinfo"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  func(cmd *cobra.Command, args []string) error { return usage(cobra.NoArgs(cmd, args)) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = a.out.Write(b)
			return err
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := buildinfo.Info()
			_, err := fmt.Fprintf(a.out, "crewsolver %s (commit %s, built %s)\n", info["version"], info["commit"], info["builtAt"])
			return err
		},
	}
}

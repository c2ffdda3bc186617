package cmd

import (
	"github.com/spf13/cobra"

	"layerkit/internal/dirs"
)

func newPrintPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print-paths",
		Short: "Show where config, scripts, data and state are kept",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if create, _ := cmd.Flags().GetBool("create"); create {
				if err := dirs.EnsureAll(); err != nil {
					return err
				}
				if err := dirs.Ensure(a.flags.ScriptsDir); err != nil {
					return err
				}
			}

			show := func(name string, resolve func() (string, error)) {
				p, err := resolve()
				if err != nil {
					p = "(unavailable: " + err.Error() + ")"
				}
				a.console.Linef("%-8s %s", name, p)
			}
			show("config", dirs.ConfigDir)
			show("data", dirs.DataDir)
			show("state", dirs.StateDir)
			show("scripts", func() (string, error) { return a.flags.ScriptsDir, nil })
			if a.configFile != "" {
				a.console.Linef("%-8s %s", "file", a.configFile)
			}
			return nil
		},
	}
	cmd.Flags().Bool("create", false, "Create the directories if missing")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/edugest/internal/pipeline"
)

var structureCmd = &cobra.Command{
	Use:   "structure <source-id>",
	Short: "Organize a stored source's facts into a topic hierarchy",
	Long: `structure sends every fact stored for the source to the pyramid engine in
one call, verifies that each fact lands in exactly one leaf, and replaces the
source's previous hierarchy with the new one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		out, err := pipeline.NewStructurer(a.store, a.configs, a.gateway, a.log).Structure(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(structureCmd)
}

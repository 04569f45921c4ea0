package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenscale93/IIsys/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect reference links from the schema description",
}

var schemaLinksCmd = &cobra.Command{
	Use:   "links [entity]",
	Short: "Show which dictionaries an entity's fields point at",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		idx, err := schema.Load(a.cfg.Path(a.cfg.Files.Schema))
		if err != nil {
			return err
		}

		entities := args
		if len(entities) == 0 {
			entities = idx.Entities()
		}
		out := cmd.OutOrStdout()
		for _, e := range entities {
			links := idx.Links(e)
			if len(links) == 0 {
				fmt.Fprintf(out, "%s: no reference fields\n", e)
				continue
			}
			fmt.Fprintf(out, "%s:\n", e)
			for _, l := range links {
				fmt.Fprintf(out, "  %s\n", l)
			}
		}
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaLinksCmd)
	rootCmd.AddCommand(schemaCmd)
}

package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greenscale93/IIsys/mapping"
	"github.com/greenscale93/IIsys/schema"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Inspect and edit learned aliases",
	Long: `Aliases map words of a question onto tables, columns and values.
Changes go to the user mapping files; the defaults file is never written.`,
}

// stores opens only the mapping documents, without loading datasets.
func (a *app) stores() (*mapping.Store, *mapping.ValueStore, error) {
	idx, err := schema.Load(a.cfg.Path(a.cfg.Files.Schema))
	if err != nil {
		return nil, nil, err
	}
	store, err := mapping.NewStore(
		mapping.FileLayer{Path: a.cfg.Path(a.cfg.Files.MappingsDefaults)},
		mapping.FileLayer{Path: a.cfg.Path(a.cfg.Files.MappingsUser)},
		a.logger)
	if err != nil {
		return nil, nil, err
	}
	values, err := mapping.NewValueStore(a.cfg.Path(a.cfg.Files.Values), idx, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return store, values, nil
}

// aliasRun wraps a mapping edit with setup and a confirmation line.
func aliasRun(fn func(store *mapping.Store, values *mapping.ValueStore, args []string) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, argv []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, values, err := a.stores()
		if err != nil {
			return err
		}
		msg, err := fn(store, values, argv)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}
}

func init() {
	aliasCmd.AddCommand(
		&cobra.Command{
			Use:   "add-entity <alias> <entity>",
			Short: "Map a word onto a table",
			Args:  cobra.ExactArgs(2),
			RunE: aliasRun(func(s *mapping.Store, _ *mapping.ValueStore, args []string) (string, error) {
				return fmt.Sprintf("%q → %s", args[0], args[1]), s.AddEntityAlias(args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove-entity <alias>",
			Short: "Forget an entity alias",
			Args:  cobra.ExactArgs(1),
			RunE: aliasRun(func(s *mapping.Store, _ *mapping.ValueStore, args []string) (string, error) {
				return fmt.Sprintf("removed %q", args[0]), s.RemoveEntityAlias(args[0])
			}),
		},
		&cobra.Command{
			Use:   "add-field <alias> <field>",
			Short: "Map a phrase onto a field",
			Args:  cobra.ExactArgs(2),
			RunE: aliasRun(func(s *mapping.Store, _ *mapping.ValueStore, args []string) (string, error) {
				return fmt.Sprintf("%q → %s", args[0], args[1]), s.AddFieldAlias(args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove-field <alias>",
			Short: "Forget a field alias",
			Args:  cobra.ExactArgs(1),
			RunE: aliasRun(func(s *mapping.Store, _ *mapping.ValueStore, args []string) (string, error) {
				return fmt.Sprintf("removed %q", args[0]), s.RemoveFieldAlias(args[0])
			}),
		},
		&cobra.Command{
			Use:   "add-value <entity> <field> <alias> <value>",
			Short: "Map a spelling onto a stored value",
			Args:  cobra.ExactArgs(4),
			RunE: aliasRun(func(_ *mapping.Store, v *mapping.ValueStore, args []string) (string, error) {
				res, err := v.Add(args[0], args[1], args[2], args[3])
				if err != nil {
					return "", err
				}
				msg := fmt.Sprintf("%q → %q in %s", args[2], args[3], res.Key)
				if res.Degraded {
					msg += " (no reference dictionary known, stored for this field only)"
				}
				return msg, nil
			}),
		},
		&cobra.Command{
			Use:   "remove-value <entity> <field> <alias>",
			Short: "Forget a value alias",
			Args:  cobra.ExactArgs(3),
			RunE: aliasRun(func(_ *mapping.Store, v *mapping.ValueStore, args []string) (string, error) {
				return fmt.Sprintf("removed %q", args[2]), v.Remove(args[0], args[1], args[2])
			}),
		},
		aliasListCmd,
	)
	rootCmd.AddCommand(aliasCmd)
}

var aliasListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every alias, merged across defaults and user files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, values, err := a.stores()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		t := store.Snapshot()
		fmt.Fprintln(w, "KIND\tALIAS\tTARGET")
		for _, k := range sortedKeys(t.EntityEN2RU) {
			fmt.Fprintf(w, "entity\t%s\t%s\n", k, t.EntityEN2RU[k])
		}
		for _, k := range sortedKeys(t.EntityRU2Canon) {
			fmt.Fprintf(w, "entity\t%s\t%s\n", k, t.EntityRU2Canon[k])
		}
		for _, k := range sortedKeys(t.FieldRU2Canon) {
			fmt.Fprintf(w, "field\t%s\t%s\n", k, t.FieldRU2Canon[k])
		}
		for _, va := range values.List() {
			fmt.Fprintf(w, "value\t%s\t%s [%s]\n", va.Alias, va.Canonical, va.Key)
		}
		return w.Flush()
	},
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/greenscale93/IIsys/template"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage question templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates and the question shapes learned for them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.templates()
		if err != nil {
			return err
		}

		byID := map[string][]string{}
		for key, id := range store.Aliases() {
			byID[id] = append(byID[id], key)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPATTERN\tPARAMS")
		for _, t := range store.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.TextPattern, strings.Join(t.ParameterNames, ", "))
			keys := byID[t.ID]
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "\t  ↳ %s\t\n", k)
			}
		}
		return w.Flush()
	},
}

var templateAddCmd = &cobra.Command{
	Use:   "add <file.json>",
	Short: "Add a template after checking it against the loaded tables",
	Long: `The file holds one template object:

  {"id": "projects_by_status",
   "text_pattern": "Проекты в статусе {st}",
   "parameter_names": ["st"],
   "code_body": "result = count(where(df_Проекты, in(\"Статус\", {st})))"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "read template file")
		}
		var t template.Template
		if err := json.Unmarshal(raw, &t); err != nil {
			return errors.Wrapf(err, "parse %s", args[0])
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		eng, err := a.engine(cmd.Context())
		if err != nil {
			return err
		}
		if err := eng.AddTemplate(t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "template %s added\n", t.ID)
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a template and its learned aliases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.templates()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "template %s deleted\n", args[0])
		return nil
	},
}

var templateSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Rank templates by similarity to a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.templates()
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")
		for i, s := range store.SearchByText(args[0], top) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d) %s (%d)  %s\n", i+1, s.Template.ID, s.Score, s.Template.TextPattern)
		}
		return nil
	},
}

var templateUnaliasCmd = &cobra.Command{
	Use:   "unalias <question or key>",
	Short: "Forget a learned question shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.templates()
		if err != nil {
			return err
		}
		if err := store.RemoveAlias(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "alias removed")
		return nil
	},
}

func (a *app) templates() (*template.Store, error) {
	return template.OpenStore(a.cfg.Path(a.cfg.Files.Templates), a.cfg.Path(a.cfg.Files.TemplateAliases), a.logger)
}

func init() {
	templateSearchCmd.Flags().Int("top", 5, "number of templates to show")
	templateCmd.AddCommand(templateListCmd, templateAddCmd, templateDeleteCmd, templateSearchCmd, templateUnaliasCmd)
	rootCmd.AddCommand(templateCmd)
}

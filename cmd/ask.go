package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/greenscale93/IIsys/engine"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and exit",
	Example: `  iisys ask "Сколько проектов, где руководитель Сорокин?"
  iisys ask "Проекты куратора Сорокин" --accept 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		eng, err := a.engine(cmd.Context())
		if err != nil {
			return err
		}
		session := eng.NewSession()
		out := cmd.OutOrStdout()
		showCode, _ := cmd.Flags().GetBool("show-code")

		resp, err := session.Ask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printResponse(out, resp, showCode)

		accept, _ := cmd.Flags().GetInt("accept")
		if accept <= 0 || resp.Suggestion == nil {
			return nil
		}
		resp, err = session.Accept(cmd.Context(), resp.Suggestion.Kind, accept)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		printResponse(out, resp, showCode)
		return nil
	},
}

func init() {
	askCmd.Flags().Int("accept", 0, "accept candidate N of the suggestion, if one is offered")
	askCmd.Flags().Bool("show-code", false, "print the executed expression")
	rootCmd.AddCommand(askCmd)
}

func printResponse(w io.Writer, resp *engine.Response, showCode bool) {
	if showCode && resp.Expression != "" {
		fmt.Fprintln(w, resp.Expression)
		fmt.Fprintln(w, "---")
	}
	fmt.Fprintln(w, resp.Text)
	if resp.Suggestion != nil {
		fmt.Fprintf(w, "(pending %s suggestion, answer with --accept N)\n", resp.Suggestion.Kind)
	}
}

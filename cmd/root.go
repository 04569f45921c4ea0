// Package cmd contains all Cobra commands for iisys.
//
// Design decision: the root command launches the chat TUI directly.
// Everything the TUI does is also reachable from subcommands (ask, alias,
// template, schema) so mappings can be edited from scripts.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/apperrors"
	"github.com/greenscale93/IIsys/applog"
	"github.com/greenscale93/IIsys/config"
	"github.com/greenscale93/IIsys/engine"
	"github.com/greenscale93/IIsys/tui"
	"github.com/greenscale93/IIsys/watch"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "iisys",
	Short: "Answer questions about ERP tables in plain Russian",
	Long: `iisys answers questions over ERP exports (CSV or Postgres):
  • "Сколько проектов, где руководитель Сорокин?" style counting and listing
  • Learned aliases for entities, fields and values
  • Stored question templates with an optional model fallback
  • Suggestions that can be accepted and remembered

Run 'iisys' to start the chat TUI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default <home>/config.yaml)")
	pf.String("home", config.DefaultHome(), "directory holding mappings, templates and logs")
	pf.String("data-dir", "", "directory of CSV exports")
	pf.String("source", "", "data source: csv or postgres")
	pf.String("dsn", "", "Postgres connection string")
	pf.String("provider", "", "template inference provider (openai, anthropic, ollama, groq, none)")
	pf.Duration("timeout", 0, "expression evaluation timeout")
	pf.Float64("min-confidence", 0, "inference confidence needed to run a guess without asking")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().Bool("watch", false, "reload mappings and templates when their files change")
	}
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat TUI (same as running iisys with no command)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperrors.UserMessage(err))
	}
	return err
}

// app is what every subcommand needs: the loaded config and a logger.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	close  func()
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, closeFn, err := applog.New(cfg.Home, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, close: closeFn}, nil
}

func (a *app) engine(ctx context.Context) (*engine.Engine, error) {
	return engine.Open(ctx, a.cfg, a.logger)
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	eng, err := a.engine(cmd.Context())
	if err != nil {
		return err
	}

	if a.cfg.Watch {
		w, err := watch.New(engine.WatchedFiles(a.cfg), eng.Reload, watch.DefaultDebounce, a.logger)
		if err != nil {
			return err
		}
		w.Start()
		defer w.Close()
	}

	return tui.Start(eng, tui.Options{
		Provider: a.cfg.AI.Provider,
		LogPath:  applog.Path(a.cfg.Home),
	})
}

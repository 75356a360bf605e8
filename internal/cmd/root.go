// Package cmd implements the multistep command line.
package cmd

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"goa.design/clue/log"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/internal/config"
	"github.com/smhanov/multistep/internal/wire"
)

// builder constructs the runtime for a loaded configuration.
type builder func(cfg *config.Config, logger multistep.Logger) (*wire.Runtime, error)

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	build   builder
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd(wire.Build).Execute()
}

// NewRootCmd returns the command tree. build is called once configuration
// has been loaded.
func NewRootCmd(build builder) *cobra.Command {
	a := &app{v: viper.New(), build: build}

	root := &cobra.Command{
		Use:   "multistep",
		Short: "Answer complex questions one sub-question at a time",
		Long: `multistep decomposes a question into a sequence of simpler sub-questions,
answers each against a search backend, and synthesizes a final answer
from the accumulated reasoning.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.config/multistep/config.yaml)")
	root.PersistentFlags().Bool("debug", false, "log prompts and responses")
	root.PersistentFlags().String("log-format", "", "log format: terminal, text or json")
	_ = a.v.BindPFlag("log.debug", root.PersistentFlags().Lookup("debug"))
	_ = a.v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newAskCmd(a), newConfigCmd(a))
	return root
}

func (a *app) initConfig() error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(config.ConfigDir())
		a.v.AddConfigPath(".")
	}

	// e.g. MULTISTEP_MODEL_API_KEY for model.api_key
	a.v.SetEnvPrefix("MULTISTEP")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// logContext configures clue logging on ctx from cfg. Records go to w.
func logContext(ctx context.Context, cfg config.LogConfig, w io.Writer) context.Context {
	format := log.FormatText
	switch cfg.Format {
	case "json":
		format = log.FormatJSON
	case "terminal":
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}
	ctx = log.Context(ctx, log.WithFormat(format), log.WithOutput(w))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}

// Command dga imports dissolved gas samples, trains and evaluates the fault
// classifier, and serves it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dga-engine/internal/cfg"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	settings   cfg.Settings
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "dga",
		Short: "Transformer fault classification from dissolved gas analysis",
		Long: `dga labels historical oil samples with the normative interpretation methods,
compares four classifiers with stratified cross-validation and classifies new
readings with the best one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default: $CONFIG_FILE or environment only)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")

	cmd.AddCommand(importCmd(opts))
	cmd.AddCommand(samplesCmd(opts))
	cmd.AddCommand(diagnoseCmd(opts))
	cmd.AddCommand(prepareCmd(opts))
	cmd.AddCommand(trainCmd(opts))
	cmd.AddCommand(evaluateCmd(opts))
	cmd.AddCommand(compareCmd(opts))
	cmd.AddCommand(classifyCmd(opts))
	cmd.AddCommand(serveCmd(opts))
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	var err error
	if o.configFile != "" {
		o.settings, err = cfg.LoadFile(o.configFile)
	} else {
		o.settings, err = cfg.Load()
	}
	if err != nil {
		return err
	}

	level := o.settings.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return setupLogging(cmd, level, o.logFormat)
}

func setupLogging(cmd *cobra.Command, level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	switch format {
	case "json":
		log.Logger = zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

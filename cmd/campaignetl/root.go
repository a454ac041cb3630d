package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alekLukanen/errs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alekLukanen/CampaignETL/runners"
)

const envPrefix = "CAMPAIGN_ETL"

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	config := &Config{}

	rc := &cobra.Command{
		Use:   "campaignetl",
		Short: "Cleans the newest raw ad campaign export and writes it back in parts.",
		Long: `campaignetl finds the newest object under the source prefix, streams it
in fixed size batches through deduplication, platform correction, null
filling and CTR/ROI derivation, and writes every batch as an output part.

Options can be given as flags, as CAMPAIGN_ETL_* environment variables or
in a toml config file, in that priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags())
		},
	}
	config.AddFlags(rc.PersistentFlags())

	rc.AddCommand(newRunCommand(config, stdout, stderr))
	rc.AddCommand(newLastRunCommand(config, stdout, stderr))
	rc.AddCommand(newConfigCommand(config, stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func newRunCommand(config *Config, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process the newest source object.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := config.Logger(stderr)
			if err != nil {
				return err
			}

			runner, err := newRunner(cmd.Context(), logger, config)
			if err != nil {
				logger.Error("failed creating runner", slog.String("error", errs.ErrorWithStack(err)))
				return err
			}
			defer runner.Close()

			summary, err := runner.Run(cmd.Context())
			if err != nil {
				logger.Error("run failed", slog.String("error", errs.ErrorWithStack(err)))
				return err
			}

			return writeJSON(stdout, summary.Result())
		},
	}
}

func newLastRunCommand(config *Config, stdout, stderr io.Writer) *cobra.Command {
	var sourceKey string
	cmd := &cobra.Command{
		Use:   "last-run",
		Short: "Print the recorded summary of the last run over a source object.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceKey == "" {
				return fmt.Errorf("--source-key is required")
			}
			logger, err := config.Logger(stderr)
			if err != nil {
				return err
			}

			runner, err := newRunner(cmd.Context(), logger, config)
			if err != nil {
				logger.Error("failed creating runner", slog.String("error", errs.ErrorWithStack(err)))
				return err
			}
			defer runner.Close()

			summary, err := runner.LastRun(cmd.Context(), sourceKey)
			if err != nil {
				logger.Error("failed reading last run", slog.String("error", errs.ErrorWithStack(err)))
				return err
			}
			return writeJSON(stdout, summary)
		},
	}
	cmd.Flags().StringVar(&sourceKey, "source-key", "", "Key of the source object.")
	return cmd
}

func newConfigCommand(config *Config, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration, without secrets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(stdout, config)
		},
	}
}

func newRunner(ctx context.Context, logger *slog.Logger, config *Config) (*runners.SingleThreadedRunner, error) {
	options, err := config.RunnerOptions()
	if err != nil {
		return nil, err
	}
	return runners.NewSingleThreadedRunner(ctx, logger, options)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order.
//
// Environment variables are the flag names upper cased with dashes replaced by
// underscores, prefixed with CAMPAIGN_ETL_. The bucket can also be given as
// S3_BUCKET_NAME.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("bucket", envPrefix+"_BUCKET", "S3_BUCKET_NAME"); err != nil {
		return err
	}

	c := v.GetString("config")
	var flagErr error
	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		err := v.ReadInConfig()
		if err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}

		for _, key := range v.AllKeys() {
			if _, ok := validTags[key]; !ok {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil {
			return
		}
		// flags given on the command line win
		if f.Changed {
			return
		}

		var value string
		if f.Value.Type() == "stringSlice" {
			// a slice from the config file reads as "" through GetString
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}

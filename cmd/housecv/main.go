// Command housecv compares regression methods on a preprocessed housing
// dataset under shared k-fold cross-validation.
//
//	housecv run --config housecv.yaml
//	housecv run --data train.csv --target SalePrice --folds 10 --output out/
//	housecv score out/lasso.gob --data test.csv
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/YuminosukeSato/housecv/pkg/errors"
	"github.com/YuminosukeSato/housecv/pkg/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "HOUSECV"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "housecv",
		Short:         "Cross-validated comparison of regression methods for house prices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("log-format")
			level, _ := cmd.Flags().GetString("log-level")
			return setupLogging(format, level)
		},
	}
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "configuration file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "console", "log format: console, json (zerolog) or slog")

	root.AddCommand(newRunCommand(), newScoreCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "housecv: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(format, level string) error {
	lv, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "console":
		log.SetProvider(log.NewZerologProviderWithWriter(zerolog.ConsoleWriter{Out: os.Stderr}, lv))
	case "json":
		log.SetProvider(log.NewZerologProvider(lv))
	case "slog":
		log.SetProvider(log.NewSlogProvider(os.Stderr, lv))
	default:
		return errors.NewValidationError("log-format", "must be console, json or slog", format)
	}
	return nil
}

// newViper layers the config file and HOUSECV_* environment variables over
// setDefaults, then binds each flag to its key. Flags win when set.
func newViper(cmd *cobra.Command, setDefaults func(*viper.Viper), bindings map[string]string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "housecv: read config %s", path)
		}
	}
	if err := bindFlags(v, cmd.Flags(), bindings); err != nil {
		return nil, err
	}
	return v, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for flag, key := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			return errors.Newf("housecv: no flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

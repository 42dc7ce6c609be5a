package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ACAKATA"

type rootOptions struct {
	configPath string
	envFile    string
	port       string
	verbose    bool
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "acakata",
		Short:         "Real-time word scramble chat room powered by Gorilla WebSocket",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(opts.envFile); err != nil {
				return err
			}
			return bindEnv(cmd.Flags())
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: ACAKATA_CONFIG)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVarP(&opts.port, "port", "p", "", "port to listen on, overrides server.port (env: ACAKATA_PORT)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level (env: ACAKATA_VERBOSE)")

	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewSeedCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// loadDotEnv loads path if it exists. Variables already set in the environment win.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// bindEnv fills every flag the user did not set from ACAKATA_<FLAG_NAME>.
func bindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		_ = v.BindEnv(f.Name)
		if v.IsSet(f.Name) {
			if setErr := fs.Set(f.Name, v.GetString(f.Name)); setErr != nil {
				err = fmt.Errorf("env %s_%s: %w", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), setErr)
			}
		}
	})
	return err
}

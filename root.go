package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/maastricht-university/affect-demo/config"
)

// commandContext carries the lazily loaded configuration shared by the
// subcommands.
type commandContext struct {
	configPath *string
	v          *viper.Viper
}

func (c *commandContext) settings() (*viper.Viper, error) {
	if c.v != nil {
		return c.v, nil
	}
	v, err := cfg.New(*c.configPath)
	if err != nil {
		return nil, err
	}
	c.v = v
	return v, nil
}

func (c *commandContext) config() (*cfg.Root, error) {
	v, err := c.settings()
	if err != nil {
		return nil, err
	}
	return cfg.Decode(v)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "affect-demo",
		Short:         "Multimodal affect recognition demo (PPG + facial expression)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	return rootCmd
}

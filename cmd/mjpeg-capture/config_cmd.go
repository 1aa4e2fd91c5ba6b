package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with every default",
	Long: `Write a YAML config file containing every key with its default value.

Without a path the file is written to mjpeg-capture.yaml in the current
directory. Use "-" to print to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "mjpeg-capture.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if path == "-" {
		data, err := config.DefaultYAML()
		if err != nil {
			return exitWithError("failed to render defaults", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := config.WriteDefault(path, configForce); err != nil {
		return exitWithError("failed to write config", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

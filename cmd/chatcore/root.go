package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFile string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "chatcore",
		Short:         "Context-managed chat with a DeepSeek/OpenAI-compatible model",
		Long:          "A terminal chat client that keeps persistent memory and bounds every prompt with a context strategy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file (default: built-in defaults)")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	root.AddCommand(newChatCmd(flags), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatcore %s\n", Version)
		},
	}
}

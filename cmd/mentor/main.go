package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "mentor",
		Short:        "Chat with the interior-design course mentor",
		SilenceUsage: true,
		RunE:         runChat,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: user config dir)")
	addChatFlags(rootCmd)

	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

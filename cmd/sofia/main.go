// Package main is the entry point for the Sofía CLI
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agendia/sofia/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sofia",
		Short: "Conversational scheduling assistant",
		Long: `Sofía is a conversational scheduling assistant. She understands Spanish
natural-language requests to consult, create, edit and delete agenda events,
asking follow-up questions until each request is complete.`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to sofia.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print lifecycle events")

	rootCmd.AddCommand(
		chatCmd(),
		sendCmd(),
		seedCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

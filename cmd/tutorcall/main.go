package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "tutorcall",
		Short: "Tutor-side video session manager",
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newSessionCmd(&flags))
	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newNormalizeCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

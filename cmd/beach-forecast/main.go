package main

import (
	"context"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "beach-forecast",
		Short:        "Beach weather recommendations for the Baltic coast",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCommand(), recommendCommand(), beachesCommand())
	return rootCmd
}

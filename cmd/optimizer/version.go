package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hybridopt/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "optimizer version %s\n", config.GetVersion())
		},
	}
}

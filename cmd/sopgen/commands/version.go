package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short, _ := cmd.Flags().GetBool("short"); short {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
	cmd.Flags().Bool("short", false, "print only the version number")
	return cmd
}

package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hilthontt/relay/cmd/relay/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relay version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay %s\n", internal.GetVersion())
		},
	}
}

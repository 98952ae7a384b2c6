package gateway

import (
	"github.com/spf13/cobra"
)

func NewGatewayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gateway",
		Aliases: []string{"g"},
		Short:   "Run the Matrix gateway: bot sessions, bus relay and HTTP API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return gatewayCmd(cmd.Context())
		},
	}
}

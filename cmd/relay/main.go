package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hilthontt/relay/cmd/relay/internal"
	"github.com/hilthontt/relay/cmd/relay/internal/assistant"
	"github.com/hilthontt/relay/cmd/relay/internal/gateway"
	"github.com/hilthontt/relay/cmd/relay/internal/version"
)

func NewRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Matrix bot gateway and chat assistant over NATS",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&internal.ConfigPath, "config", "c", "", "Path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&internal.Debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		assistant.NewAssistantCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	if err := NewRelayCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

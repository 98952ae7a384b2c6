package assistant

import (
	"github.com/spf13/cobra"
)

func NewAssistantCommand() *cobra.Command {
	var replier string

	cmd := &cobra.Command{
		Use:     "assistant",
		Aliases: []string{"a"},
		Short:   "Run the chat assistant that logs bots in and answers room messages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return assistantCmd(cmd.Context(), replier)
		},
	}

	cmd.Flags().StringVar(&replier, "replier", "", "Reply strategy: echo or anthropic (overrides config)")

	return cmd
}

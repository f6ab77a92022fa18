package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/project-assistant/internal/adminclient"
)

func newProjectCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project lifecycle commands",
	}
	var input adminclient.ProjectReadyRequest
	ready := &cobra.Command{
		Use:   "ready <project-id>",
		Short: "Mark a project ready and provision its assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.ProjectID = strings.TrimSpace(args[0])
			client, err := newClient(load)
			if err != nil {
				return err
			}
			response, err := client.ProjectReady(cmd.Context(), input)
			if err != nil {
				return err
			}
			verb := "already provisioned"
			if response.Created {
				verb = "provisioned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assistant %s for %s: %s (model %s)\n", verb, response.ProjectID, response.AssistantID, response.Model)
			return nil
		},
	}
	ready.Flags().StringVar(&input.Name, "name", "", "project display name")
	ready.Flags().StringVar(&input.DeploymentURL, "url", "", "public deployment URL")
	ready.Flags().StringVar(&input.DeploymentProjectRef, "vercel-project", "", "deployment platform project id")
	ready.Flags().StringVar(&input.DataProjectRef, "data-project", "", "data platform project ref")
	ready.Flags().StringVar(&input.Model, "model", "", "assistant model (defaults to the runtime model)")
	ready.Flags().IntVar(&input.MaxTokens, "max-tokens", 0, "assistant max output tokens")
	ready.Flags().StringVar(&input.SystemPrompt, "system-prompt", "", "assistant system prompt")
	cmd.AddCommand(ready)
	return cmd
}

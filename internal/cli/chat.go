package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/project-assistant/internal/adminclient"
)

func newChatCommand(load configLoader) *cobra.Command {
	var (
		projectID      string
		requesterID    string
		conversationID string
		message        string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a project assistant through the API",
		Long: "Sends one turn with --message, or reads one turn per line from stdin and keeps " +
			"the conversation going until EOF.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectID) == "" || strings.TrimSpace(requesterID) == "" {
				return fmt.Errorf("--project and --requester are required")
			}
			client, err := newClient(load)
			if err != nil {
				return err
			}
			session := &chatSession{
				client:         client,
				projectID:      projectID,
				requesterID:    requesterID,
				conversationID: conversationID,
				out:            cmd.OutOrStdout(),
			}
			if strings.TrimSpace(message) != "" {
				return session.send(cmd, message)
			}
			return session.repl(cmd, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&requesterID, "requester", "", "requester user id")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and exit")
	return cmd
}

type chatSession struct {
	client         *adminclient.Client
	projectID      string
	requesterID    string
	conversationID string
	out            io.Writer
}

func (s *chatSession) send(cmd *cobra.Command, message string) error {
	response, err := s.client.Chat(cmd.Context(), adminclient.ChatRequest{
		ProjectID:      s.projectID,
		RequesterID:    s.requesterID,
		ConversationID: s.conversationID,
		Message:        message,
	})
	if err != nil {
		return err
	}
	s.conversationID = response.ConversationID
	fmt.Fprintf(s.out, "%s\n", response.Response)
	fmt.Fprintf(s.out, "[conversation %s]\n", response.ConversationID)
	return nil
}

func (s *chatSession) repl(cmd *cobra.Command, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := s.send(cmd, line); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

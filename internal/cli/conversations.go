package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newConversationsCommand(load configLoader) *cobra.Command {
	var (
		projectID   string
		requesterID string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List, show and archive assistant conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(load)
			if err != nil {
				return err
			}
			items, err := client.ListConversations(cmd.Context(), projectID, requesterID, limit)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tMESSAGES\tLAST MESSAGE\tTITLE")
			for _, item := range items {
				fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n", item.ID, item.MessageCount, formatUnix(item.LastMessageAtUnix), item.Title)
			}
			return writer.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&requesterID, "requester", "", "requester user id")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum conversations to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(load)
			if err != nil {
				return err
			}
			conversation, err := client.GetConversation(cmd.Context(), args[0], requesterID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", conversation.ID, conversation.Title)
			for _, message := range conversation.Messages {
				fmt.Fprintf(out, "\n[%d] %s %s\n%s\n", message.Seq, message.Role, formatUnix(message.CreatedAtUnix), message.Content)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "archive <conversation-id>",
		Short: "Hide a conversation from listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(load)
			if err != nil {
				return err
			}
			if err := client.ArchiveConversation(cmd.Context(), args[0], requesterID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func formatUnix(value int64) string {
	if value <= 0 {
		return "-"
	}
	return time.Unix(value, 0).UTC().Format(time.RFC3339)
}

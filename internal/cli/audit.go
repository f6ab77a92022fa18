package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/project-assistant/internal/adminclient"
)

func newAuditCommand(load configLoader) *cobra.Command {
	var query adminclient.AuditQuery
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List privileged action audit records for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(load)
			if err != nil {
				return err
			}
			items, err := client.ListAudit(cmd.Context(), query)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "STARTED\tACTION\tACTOR\tOK\tDURATION\tERROR")
			for _, item := range items {
				started := time.UnixMilli(item.StartedAtUnixMs).UTC().Format(time.RFC3339)
				fmt.Fprintf(writer, "%s\t%s\t%s\t%t\t%dms\t%s\n", started, item.Action, item.ActorID, item.Success, item.DurationMs, item.ErrorMessage)
			}
			return writer.Flush()
		},
	}
	cmd.Flags().StringVar(&query.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&query.ActorID, "actor", "", "filter by actor id")
	cmd.Flags().StringVar(&query.Action, "action", "", "filter by action name")
	cmd.Flags().BoolVar(&query.FailedOnly, "failed", false, "only failed executions")
	cmd.Flags().IntVar(&query.Limit, "limit", 100, "maximum records")
	return cmd
}

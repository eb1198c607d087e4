package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lototrak/internal/storage"
)

var (
	eventLockFilter string
	eventUserFilter string
	eventTypeFilter string
	eventLimit      int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		events, err := provider.ListEvents(ctx, storage.EventFilter{
			LockID: eventLockFilter,
			UserID: eventUserFilter,
			Type:   storage.EventType(eventTypeFilter),
			Limit:  eventLimit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing events: %v\n", err)
			os.Exit(1)
		}

		if len(events) == 0 {
			fmt.Println("No events found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tLOCK\tUSER\tDETAILS")
		for _, event := range events {
			lockID := "-"
			if event.LockID != nil {
				lockID = *event.LockID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", event.CreatedAt.Format(time.RFC3339), event.Type, lockID, event.UserID, event.Details)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsListCmd.Flags().StringVar(&eventLockFilter, "lock", "", "filter by lock id")
	eventsListCmd.Flags().StringVar(&eventUserFilter, "user", "", "filter by user id")
	eventsListCmd.Flags().StringVar(&eventTypeFilter, "type", "", "filter by event type")
	eventsListCmd.Flags().IntVar(&eventLimit, "limit", 0, "maximum number of events")
	eventsCmd.AddCommand(eventsListCmd)
}
